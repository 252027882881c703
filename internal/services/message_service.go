package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"alumnet/internal/apptypes"
	"alumnet/internal/config"
	"alumnet/internal/kafka"
	"alumnet/internal/models"
	"alumnet/internal/storage"

	"gorm.io/gorm"
)

var ErrMessageNotFound = errors.New("消息不存在")

// MessageService 负责站内私信。只有已建立连接的双方才能互发消息,
// 这一约束在发送路径上强制执行。
type MessageService interface {
	SendMessage(ctx context.Context, senderID, recipientID uint, content string) (*models.Message, error)
	ListConversation(ctx context.Context, callerID, peerID uint, limit, offset int) ([]*models.Message, error)
	MarkConversationRead(ctx context.Context, callerID, peerID uint) (int64, error)
	CountUnread(ctx context.Context, callerID uint) (int64, error)
}

type messageService struct {
	messageRepo storage.MessageRepository
	userRepo    storage.UserRepository
	connSvc     ConnectionService
	producer    kafka.MessageProducer
	kafkaConfig config.KafkaConfig
}

// NewMessageService creates a new MessageService instance.
// producer may be nil, in which case no delivery events are published.
func NewMessageService(
	messageRepo storage.MessageRepository,
	userRepo storage.UserRepository,
	connSvc ConnectionService,
	producer kafka.MessageProducer,
	cfg config.KafkaConfig,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		connSvc:     connSvc,
		producer:    producer,
		kafkaConfig: cfg,
	}
}

// SendMessage persists a direct message after verifying the two users hold
// an accepted connection. The database insert is the source of truth; the
// Kafka event only drives realtime delivery to online recipients.
func (s *messageService) SendMessage(ctx context.Context, senderID, recipientID uint, content string) (*models.Message, error) {
	if senderID == recipientID {
		return nil, ErrSelfConnection
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	connected, err := s.connSvc.AreConnected(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, ErrNotConnected
	}

	message := &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		log.Printf("Error saving message from %d to %d: %v", senderID, recipientID, err)
		return nil, fmt.Errorf("发送消息失败: %w", err)
	}

	s.publishDeliveryEvent(ctx, message)
	return message, nil
}

// ListConversation returns the message history between the caller and a
// peer, newest first. Like sending, reading requires an accepted
// connection.
func (s *messageService) ListConversation(ctx context.Context, callerID, peerID uint, limit, offset int) ([]*models.Message, error) {
	connected, err := s.connSvc.AreConnected(ctx, callerID, peerID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, ErrNotConnected
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	messages, err := s.messageRepo.ListBetween(ctx, callerID, peerID, limit, offset)
	if err != nil {
		log.Printf("Error listing conversation %d<->%d: %v", callerID, peerID, err)
		return nil, fmt.Errorf("获取消息记录失败: %w", err)
	}
	return messages, nil
}

func (s *messageService) MarkConversationRead(ctx context.Context, callerID, peerID uint) (int64, error) {
	count, err := s.messageRepo.MarkRead(ctx, callerID, peerID)
	if err != nil {
		log.Printf("Error marking conversation %d<->%d read: %v", callerID, peerID, err)
		return 0, fmt.Errorf("标记已读失败: %w", err)
	}
	return count, nil
}

func (s *messageService) CountUnread(ctx context.Context, callerID uint) (int64, error) {
	count, err := s.messageRepo.CountUnread(ctx, callerID)
	if err != nil {
		return 0, fmt.Errorf("统计未读消息失败: %w", err)
	}
	return count, nil
}

func (s *messageService) publishDeliveryEvent(ctx context.Context, message *models.Message) {
	if s.producer == nil {
		return
	}

	senderName := ""
	if info, err := s.userRepo.GetBasicInfoByID(ctx, message.SenderID); err == nil {
		senderName = info.Nickname
		if senderName == "" {
			senderName = info.Username
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Error fetching sender info for message %d: %v", message.ID, err)
	}

	event := &apptypes.Notification{
		Type:        apptypes.NotificationDirectMessage,
		RecipientID: message.RecipientID,
		SenderID:    message.SenderID,
		SenderName:  senderName,
		MessageID:   message.ID,
		Preview:     truncatePreview(message.Content),
		Timestamp:   time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling message event: %v", err)
		return
	}
	key := []byte(fmt.Sprintf("%d", message.RecipientID))
	if err := s.producer.SendMessage(ctx, s.kafkaConfig.MessagesTopic, key, payload); err != nil {
		log.Printf("Error producing message event to topic %s: %v", s.kafkaConfig.MessagesTopic, err)
	}
}
