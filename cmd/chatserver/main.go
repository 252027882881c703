package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	redisDriver "github.com/redis/go-redis/v9"

	"alumnet/internal/apptypes"
	"alumnet/internal/config"
	"alumnet/internal/handlers/chatserver"
	appKafka "alumnet/internal/kafka"
	appRedis "alumnet/internal/redis"
	"alumnet/internal/websocket"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("通知服务器配置加载成功。")

	// 2. 初始化 Redis,令牌校验需要黑名单
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	// 3. 初始化 WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()
	log.Println("WebSocket Hub 已启动。")

	// 4. 初始化 WebSocket Handler
	wsHandler := chatserver.NewWebSocketHandler(hub, tokenBlacklist, cfg)

	// 5. 初始化 Kafka 消费者,一个消费连接事件,一个消费私信事件
	notificationConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建通知 Kafka 消费者: %v", err)
	}
	defer notificationConsumer.Close()

	messageConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建私信 Kafka 消费者: %v", err)
	}
	defer messageConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	// 两个 topic 的事件载荷相同,投递逻辑共用一个回调。
	deliverToHub := func(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
		var n apptypes.Notification
		if err := json.Unmarshal(kafkaMsg.Value, &n); err != nil {
			log.Printf("错误: 无法反序列化通知事件: %v, 原始值: %s", err, string(kafkaMsg.Value))
			return nil // 单条坏消息不应停掉消费者
		}
		hub.Deliver(&n)
		return nil
	}

	go func() {
		log.Printf("Kafka 通知消费者启动,监听 topic: %s", cfg.Kafka.NotificationsTopic)
		if err := notificationConsumer.Consume(consumerCtx, []string{cfg.Kafka.NotificationsTopic},
			cfg.Kafka.ConsumerGroup, deliverToHub); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 通知消费者错误: %v", err)
		}
		log.Println("Kafka 通知消费者 goroutine 已停止。")
	}()

	go func() {
		log.Printf("Kafka 私信消费者启动,监听 topic: %s", cfg.Kafka.MessagesTopic)
		if err := messageConsumer.Consume(consumerCtx, []string{cfg.Kafka.MessagesTopic},
			cfg.Kafka.ConsumerGroup, deliverToHub); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 私信消费者错误: %v", err)
		}
		log.Println("Kafka 私信消费者 goroutine 已停止。")
	}()

	// 6. 配置 HTTP 服务器路由
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	// 7. 启动 HTTP 服务器
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("通知服务器启动于 %s, WebSocket 路径: %s", serverAddr, cfg.Server.WebSocketPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("通知服务器启动失败: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("通知服务器准备关闭...")

	cancelConsumers()
	log.Println("正在等待 Kafka 消费者停止...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("通知服务器关闭失败: %v", err)
	}
	log.Println("通知服务器已优雅关闭。")
}
