package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"alumnet/internal/apptypes"
	"alumnet/internal/config"
	"alumnet/internal/handlers/apiserver"
	appKafka "alumnet/internal/kafka"
	"alumnet/internal/middleware"
	appRedis "alumnet/internal/redis"
	"alumnet/internal/services"
	"alumnet/internal/storage"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("API 服务器配置加载成功。")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("API 服务器数据库连接成功。")

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("警告:数据库表迁移可能失败: %v", err)
	}

	// 3. 初始化 Redis 与令牌黑名单
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	log.Println("成功连接到 Redis")
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	// 4. 初始化 Repositories
	userRepo := storage.NewGormUserRepository(db)
	connRepo := storage.NewGormConnectionRepository(db)
	postRepo := storage.NewGormPostRepository(db)
	messageRepo := storage.NewGormMessageRepository(db)
	announcementRepo := storage.NewGormAnnouncementRepository(db)

	// 5. 初始化 Kafka 生产者,用于通知事件的投递
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建 Kafka 生产者: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka 生产者初始化成功 (API Server)。")

	// 6. 初始化 Services
	authService := services.NewAuthService(userRepo, cfg.Auth)
	userService := services.NewUserService(userRepo)
	connectionService := services.NewConnectionService(connRepo, userRepo, kfkProducer, cfg.Kafka)
	postService := services.NewPostService(postRepo)
	messageService := services.NewMessageService(messageRepo, userRepo, connectionService, kfkProducer, cfg.Kafka)
	announcementService := services.NewAnnouncementService(announcementRepo)

	// 6.1 初始化存储服务
	var storageService apptypes.StorageService
	storageBaseURL := "/uploads"
	if cfg.Storage.Type == "local" {
		storageService, err = storage.NewLocalStorageService(cfg.Storage, storageBaseURL)
		if err != nil {
			log.Fatalf("无法初始化本地存储服务: %v", err)
		}
		log.Println("本地存储服务初始化成功。")
	} else {
		log.Fatalf("不支持的存储类型: %s", cfg.Storage.Type)
	}

	// 7. 初始化 Handlers
	authHandler := apiserver.NewAuthHandler(authService, tokenBlacklist)
	userHandler := apiserver.NewUserHandler(userService)
	connectionHandler := apiserver.NewConnectionHandler(connectionService)
	postHandler := apiserver.NewPostHandler(postService)
	messageHandler := apiserver.NewMessageHandler(messageService)
	announcementHandler := apiserver.NewAnnouncementHandler(announcementService)
	adminHandler := apiserver.NewAdminHandler(userService, announcementService)
	uploadHandler := apiserver.NewUploadHandler(storageService, cfg.Storage)

	// 8. 设置 HTTP 路由
	r := mux.NewRouter()

	// 8.1 公开认证路由
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.RegisterHandler).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.LoginHandler).Methods(http.MethodPost)

	authMW := middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)

	// 8.2 需要认证的路由
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	apiRouter.HandleFunc("/auth/logout", authHandler.LogoutHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/users/me", userHandler.GetMeHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", userHandler.UpdateMeHandler).Methods(http.MethodPut)

	// 8.3 社区路由,仅对已通过审核的账号开放
	communityRouter := apiRouter.PathPrefix("").Subrouter()
	communityRouter.Use(middleware.RequireApproved(userRepo))

	communityRouter.HandleFunc("/users/search", userHandler.SearchDirectoryHandler).Methods(http.MethodGet)

	// 连接(人脉)路由
	connectionRouter := communityRouter.PathPrefix("/connections").Subrouter()
	connectionRouter.HandleFunc("", connectionHandler.RequestConnectionHandler).Methods(http.MethodPost)
	connectionRouter.HandleFunc("", connectionHandler.ListConnectionsHandler).Methods(http.MethodGet)
	connectionRouter.HandleFunc("/{id:[0-9]+}/accept", connectionHandler.AcceptConnectionHandler).Methods(http.MethodPost)
	connectionRouter.HandleFunc("/{id:[0-9]+}/reject", connectionHandler.RejectConnectionHandler).Methods(http.MethodPost)
	connectionRouter.HandleFunc("/{id:[0-9]+}", connectionHandler.RemoveConnectionHandler).Methods(http.MethodDelete)

	// 动态路由
	communityRouter.HandleFunc("/feed", postHandler.ListFeedHandler).Methods(http.MethodGet)
	postRouter := communityRouter.PathPrefix("/posts").Subrouter()
	postRouter.HandleFunc("", postHandler.CreatePostHandler).Methods(http.MethodPost)
	postRouter.HandleFunc("/{id:[0-9]+}", postHandler.GetPostHandler).Methods(http.MethodGet)
	postRouter.HandleFunc("/{id:[0-9]+}", postHandler.DeletePostHandler).Methods(http.MethodDelete)
	postRouter.HandleFunc("/{id:[0-9]+}/like", postHandler.LikePostHandler).Methods(http.MethodPost)
	postRouter.HandleFunc("/{id:[0-9]+}/like", postHandler.UnlikePostHandler).Methods(http.MethodDelete)
	postRouter.HandleFunc("/{id:[0-9]+}/comments", postHandler.AddCommentHandler).Methods(http.MethodPost)
	postRouter.HandleFunc("/{id:[0-9]+}/comments", postHandler.ListCommentsHandler).Methods(http.MethodGet)
	postRouter.HandleFunc("/{id:[0-9]+}/comments/{commentId:[0-9]+}", postHandler.DeleteCommentHandler).Methods(http.MethodDelete)

	// 私信路由
	messageRouter := communityRouter.PathPrefix("/messages").Subrouter()
	messageRouter.HandleFunc("", messageHandler.SendMessageHandler).Methods(http.MethodPost)
	messageRouter.HandleFunc("/unread", messageHandler.UnreadCountHandler).Methods(http.MethodGet)
	messageRouter.HandleFunc("/{peerId:[0-9]+}", messageHandler.ListConversationHandler).Methods(http.MethodGet)
	messageRouter.HandleFunc("/{peerId:[0-9]+}/read", messageHandler.MarkReadHandler).Methods(http.MethodPost)

	// 公告与文件上传
	communityRouter.HandleFunc("/announcements", announcementHandler.ListAnnouncementsHandler).Methods(http.MethodGet)
	communityRouter.HandleFunc("/upload", uploadHandler.UploadFileHandler).Methods(http.MethodPost)

	// 8.4 管理员路由
	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.RequireAdmin())
	adminRouter.HandleFunc("/users/pending", adminHandler.ListPendingUsersHandler).Methods(http.MethodGet)
	adminRouter.HandleFunc("/users/{id:[0-9]+}/approve", adminHandler.ApproveUserHandler).Methods(http.MethodPost)
	adminRouter.HandleFunc("/users/{id:[0-9]+}/reject", adminHandler.RejectUserHandler).Methods(http.MethodPost)
	adminRouter.HandleFunc("/announcements", adminHandler.PublishAnnouncementHandler).Methods(http.MethodPost)
	adminRouter.HandleFunc("/announcements/{id:[0-9]+}", adminHandler.DeleteAnnouncementHandler).Methods(http.MethodDelete)

	// 8.5 静态文件服务,用于访问上传的文件
	if cfg.Storage.Type == "local" {
		staticPath := strings.TrimSuffix(storageBaseURL, "/") + "/"
		localDir := http.Dir(cfg.Storage.LocalPath)
		r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(localDir)))
		log.Printf("提供静态文件服务于 %s -> %s", staticPath, cfg.Storage.LocalPath)
	}

	// 9. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		log.Printf("API 服务器启动于 %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号,正在关闭 API 服务器...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API 服务器强制关闭: %v", err)
	}

	log.Println("API 服务器已成功关闭")
}
