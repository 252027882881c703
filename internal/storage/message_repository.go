package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"alumnet/internal/models"
)

// MessageRepository 定义了私信数据操作的接口。
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// ListBetween 返回两个用户之间的私信（双向），按发送时间倒序，支持分页。
	ListBetween(ctx context.Context, userID1, userID2 uint, limit, offset int) ([]*models.Message, error)
	// MarkRead 将 peer 发给 reader 的所有未读消息标记为已读，返回影响行数。
	MarkRead(ctx context.Context, readerID, peerID uint) (int64, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
}

// gormMessageRepository 使用 GORM 实现 MessageRepository。
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageRepository。
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create 在数据库中创建一条新的私信记录。
func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID 通过ID检索私信。
func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Preload("Sender").First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListBetween 检索两个用户之间的历史私信。
func (r *gormMessageRepository) ListBetween(ctx context.Context, userID1, userID2 uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	query := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID1, userID2, userID2, userID1).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Preload("Sender").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead 批量更新已读时间。
func (r *gormMessageRepository) MarkRead(ctx context.Context, readerID, peerID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("recipient_id = ? AND sender_id = ? AND read_at IS NULL", readerID, peerID).
		Update("read_at", time.Now())
	return res.RowsAffected, res.Error
}

// CountUnread 统计用户所有未读私信数。
func (r *gormMessageRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Count(&count).Error
	return count, err
}
