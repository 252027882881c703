package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"alumnet/internal/apptypes"
	"alumnet/internal/config"
	"alumnet/internal/kafka"
	"alumnet/internal/models"
	"alumnet/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrSelfConnection     = errors.New("不能与自己建立连接")
	ErrTargetNotFound     = errors.New("目标用户不存在或尚未通过审核")
	ErrConnectionExists   = errors.New("你们之间已存在连接或待处理的请求")
	ErrConnectionNotFound = errors.New("连接请求不存在")
	ErrInvalidFilter      = errors.New("无效的连接过滤条件")
	ErrNotConnected       = errors.New("你们还不是连接关系")
)

// ConnectionFilter values accepted by ListConnections.
const (
	ConnectionFilterAll      = "all"
	ConnectionFilterPending  = "pending"
	ConnectionFilterAccepted = "accepted"
)

// ConnectionService owns the rules for creating, transitioning and tearing
// down connection records between two users. It is the single choke point
// for all connection mutations; callers always pass the authenticated
// caller ID explicitly.
//
// Authorization failures on respond/remove are reported as
// ErrConnectionNotFound rather than a distinct "forbidden" error, so a
// caller probing arbitrary IDs cannot tell other users' pending requests
// apart from nonexistent ones.
type ConnectionService interface {
	RequestConnection(ctx context.Context, requesterID, targetID uint, message string) (*models.Connection, error)
	RespondToConnection(ctx context.Context, callerID, connectionID uint, accept bool) error
	RemoveConnection(ctx context.Context, callerID, connectionID uint) error
	ListConnections(ctx context.Context, callerID uint, filter string) ([]*models.ConnectionWithPeer, error)
	// AreConnected reports whether an accepted connection exists between
	// the two users. Used by the messaging service as its gate.
	AreConnected(ctx context.Context, userID1, userID2 uint) (bool, error)
}

type connectionService struct {
	connRepo    storage.ConnectionRepository
	userRepo    storage.UserRepository
	producer    kafka.MessageProducer
	kafkaConfig config.KafkaConfig
}

// NewConnectionService creates a new ConnectionService instance.
// producer may be nil, in which case no notifications are published.
func NewConnectionService(
	connRepo storage.ConnectionRepository,
	userRepo storage.UserRepository,
	producer kafka.MessageProducer,
	cfg config.KafkaConfig,
) ConnectionService {
	return &connectionService{
		connRepo:    connRepo,
		userRepo:    userRepo,
		producer:    producer,
		kafkaConfig: cfg,
	}
}

// RequestConnection validates and inserts a new pending connection.
//
// The FindBetween pre-check is an optimization for the common case; the
// actual guarantee that at most one record exists per unordered user pair
// comes from the store's unique pair index. A duplicate-key error from a
// lost race is therefore folded into the same ErrConnectionExists outcome
// as the pre-check, with the surviving record returned.
func (s *connectionService) RequestConnection(ctx context.Context, requesterID, targetID uint, message string) (*models.Connection, error) {
	if requesterID == targetID {
		return nil, ErrSelfConnection
	}

	// 1. Target must exist and be an approved account.
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetNotFound
		}
		log.Printf("Error checking target user %d: %v", targetID, err)
		return nil, fmt.Errorf("检查目标用户时出错: %w", err)
	}
	if !target.Approved {
		return nil, ErrTargetNotFound
	}

	// 2. Pre-check for an existing record in either direction.
	existing, err := s.connRepo.FindBetween(ctx, requesterID, targetID)
	if err != nil {
		log.Printf("Error checking existing connection between %d and %d: %v", requesterID, targetID, err)
		return nil, fmt.Errorf("检查现有连接时出错: %w", err)
	}
	if existing != nil {
		return existing, ErrConnectionExists
	}

	// 3. Insert. The pair unique index resolves concurrent duplicates.
	conn := &models.Connection{
		RequesterID: requesterID,
		ReceiverID:  targetID,
		Status:      models.ConnectionStatusPending,
		Message:     message,
	}
	if err := s.connRepo.Create(ctx, conn); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race: another request for this pair landed first.
			survivor, findErr := s.connRepo.FindBetween(ctx, requesterID, targetID)
			if findErr != nil || survivor == nil {
				return nil, ErrConnectionExists
			}
			return survivor, ErrConnectionExists
		}
		log.Printf("Error creating connection (%d -> %d): %v", requesterID, targetID, err)
		return nil, fmt.Errorf("创建连接请求失败: %w", err)
	}

	s.publishNotification(ctx, &apptypes.Notification{
		Type:         apptypes.NotificationConnectionRequest,
		RecipientID:  targetID,
		SenderID:     requesterID,
		ConnectionID: conn.ID,
		Preview:      truncatePreview(message),
		Timestamp:    time.Now(),
	})

	return conn, nil
}

// RespondToConnection accepts or rejects a pending connection addressed to
// the caller. Accept flips the record to accepted; reject deletes it
// outright (rejected requests leave no trace). Both are single conditional
// statements: under a concurrent decision the first writer wins and the
// loser gets ErrConnectionNotFound.
func (s *connectionService) RespondToConnection(ctx context.Context, callerID, connectionID uint, accept bool) error {
	if accept {
		ok, err := s.connRepo.AcceptPending(ctx, connectionID, callerID)
		if err != nil {
			log.Printf("Error accepting connection %d by user %d: %v", connectionID, callerID, err)
			return fmt.Errorf("处理连接请求失败: %w", err)
		}
		if !ok {
			return ErrConnectionNotFound
		}

		// Notify the requester their request was accepted.
		if conn, err := s.connRepo.GetByID(ctx, connectionID); err == nil {
			s.publishNotification(ctx, &apptypes.Notification{
				Type:         apptypes.NotificationConnectionAccepted,
				RecipientID:  conn.RequesterID,
				SenderID:     callerID,
				ConnectionID: conn.ID,
				Timestamp:    time.Now(),
			})
		}
		return nil
	}

	ok, err := s.connRepo.DeletePending(ctx, connectionID, callerID)
	if err != nil {
		log.Printf("Error rejecting connection %d by user %d: %v", connectionID, callerID, err)
		return fmt.Errorf("处理连接请求失败: %w", err)
	}
	if !ok {
		return ErrConnectionNotFound
	}
	// Rejections are silent: the requester is not notified and nothing
	// about the decision is persisted.
	return nil
}

// RemoveConnection deletes an accepted connection. Either participant may
// remove it; anyone else gets ErrConnectionNotFound.
func (s *connectionService) RemoveConnection(ctx context.Context, callerID, connectionID uint) error {
	ok, err := s.connRepo.DeleteAccepted(ctx, connectionID, callerID)
	if err != nil {
		log.Printf("Error removing connection %d by user %d: %v", connectionID, callerID, err)
		return fmt.Errorf("删除连接失败: %w", err)
	}
	if !ok {
		return ErrConnectionNotFound
	}
	return nil
}

// ListConnections returns every connection the caller takes part in,
// newest first, annotated with the caller-relative role and the
// counterparty's public info. Purely a read projection.
func (s *connectionService) ListConnections(ctx context.Context, callerID uint, filter string) ([]*models.ConnectionWithPeer, error) {
	switch filter {
	case "", ConnectionFilterAll, ConnectionFilterPending, ConnectionFilterAccepted:
	default:
		return nil, ErrInvalidFilter
	}

	conns, err := s.connRepo.ListByParticipant(ctx, callerID)
	if err != nil {
		log.Printf("Error listing connections for user %d: %v", callerID, err)
		return nil, fmt.Errorf("获取连接列表失败: %w", err)
	}

	var filtered []models.Connection
	for _, c := range conns {
		switch filter {
		case ConnectionFilterPending:
			if c.Status != models.ConnectionStatusPending {
				continue
			}
		case ConnectionFilterAccepted:
			if c.Status != models.ConnectionStatusAccepted {
				continue
			}
		}
		filtered = append(filtered, c)
	}

	// Enrich with the counterparty's basic info in one batch.
	peerIDs := make([]uint, 0, len(filtered))
	for _, c := range filtered {
		peerIDs = append(peerIDs, c.PeerID(callerID))
	}
	peerInfos, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, peerIDs)
	if err != nil {
		log.Printf("Error fetching peer info for user %d connections: %v", callerID, err)
		return nil, fmt.Errorf("获取连接对方信息失败: %w", err)
	}
	peersByID := make(map[uint]*models.UserBasicInfo, len(peerInfos))
	for _, info := range peerInfos {
		peersByID[info.ID] = info
	}

	result := make([]*models.ConnectionWithPeer, 0, len(filtered))
	for _, c := range filtered {
		result = append(result, &models.ConnectionWithPeer{
			Connection: c,
			Role:       c.RoleFor(callerID),
			Peer:       peersByID[c.PeerID(callerID)],
		})
	}
	return result, nil
}

// AreConnected reports whether an accepted connection exists between the
// two users.
func (s *connectionService) AreConnected(ctx context.Context, userID1, userID2 uint) (bool, error) {
	conn, err := s.connRepo.FindBetween(ctx, userID1, userID2)
	if err != nil {
		return false, fmt.Errorf("检查连接关系时出错: %w", err)
	}
	return conn != nil && conn.Status == models.ConnectionStatusAccepted, nil
}

// publishNotification produces a notification event to Kafka, best effort.
// The database write is the source of truth; a failed publish is logged
// and never fails the caller's operation.
func (s *connectionService) publishNotification(ctx context.Context, n *apptypes.Notification) {
	if s.producer == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("Error marshalling notification event: %v", err)
		return
	}
	key := []byte(fmt.Sprintf("%d", n.RecipientID))
	if err := s.producer.SendMessage(ctx, s.kafkaConfig.NotificationsTopic, key, payload); err != nil {
		log.Printf("Error producing notification event to topic %s: %v", s.kafkaConfig.NotificationsTopic, err)
	}
}

// truncatePreview trims a free-form message down to a short notification
// preview.
func truncatePreview(message string) string {
	const maxPreview = 80
	runes := []rune(message)
	if len(runes) <= maxPreview {
		return message
	}
	return string(runes[:maxPreview]) + "..."
}
