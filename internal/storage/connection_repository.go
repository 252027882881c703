package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"alumnet/internal/models"
)

// ConnectionRepository defines the interface for connection (relationship)
// data operations. The transition methods are single conditional
// statements: under concurrent accept/reject/remove the database's
// row-level atomicity decides the winner, and the loser simply matches
// zero rows.
type ConnectionRepository interface {
	// Create inserts a new connection record. The unique index on the
	// canonical pair columns rejects a duplicate for the same unordered
	// user pair with gorm.ErrDuplicatedKey.
	Create(ctx context.Context, conn *models.Connection) error
	// FindBetween returns the connection between two users regardless of
	// request direction, or nil if none exists.
	FindBetween(ctx context.Context, userID1, userID2 uint) (*models.Connection, error)
	GetByID(ctx context.Context, id uint) (*models.Connection, error)
	// ListByParticipant returns every connection the user takes part in,
	// newest first.
	ListByParticipant(ctx context.Context, userID uint) ([]models.Connection, error)
	// AcceptPending flips a pending record to accepted, but only if the
	// caller is its receiver. Returns false when no row matched.
	AcceptPending(ctx context.Context, id, receiverID uint) (bool, error)
	// DeletePending removes a pending record addressed to receiverID
	// (a rejection). Returns false when no row matched.
	DeletePending(ctx context.Context, id, receiverID uint) (bool, error)
	// DeleteAccepted removes an accepted record where participantID is
	// either side (connection removal). Returns false when no row matched.
	DeleteAccepted(ctx context.Context, id, participantID uint) (bool, error)
}

type gormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GORM-based ConnectionRepository.
func NewGormConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &gormConnectionRepository{db: db}
}

func (r *gormConnectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	conn.EnsurePairOrder()
	return r.db.WithContext(ctx).Create(conn).Error
}

func (r *gormConnectionRepository) FindBetween(ctx context.Context, userID1, userID2 uint) (*models.Connection, error) {
	lo, hi := userID1, userID2
	if lo > hi {
		lo, hi = hi, lo
	}

	var conn models.Connection
	err := r.db.WithContext(ctx).
		Where("pair_low_id = ? AND pair_high_id = ?", lo, hi).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // no record between the pair is not an error here
		}
		return nil, err
	}
	return &conn, nil
}

func (r *gormConnectionRepository) GetByID(ctx context.Context, id uint) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.WithContext(ctx).First(&conn, id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *gormConnectionRepository) ListByParticipant(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.WithContext(ctx).
		Where("requester_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&conns).Error
	return conns, err
}

func (r *gormConnectionRepository) AcceptPending(ctx context.Context, id, receiverID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, models.ConnectionStatusPending).
		Update("status", models.ConnectionStatusAccepted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormConnectionRepository) DeletePending(ctx context.Context, id, receiverID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, models.ConnectionStatusPending).
		Delete(&models.Connection{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormConnectionRepository) DeleteAccepted(ctx context.Context, id, participantID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ? AND (requester_id = ? OR receiver_id = ?)",
			id, models.ConnectionStatusAccepted, participantID, participantID).
		Delete(&models.Connection{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
