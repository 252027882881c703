package storage

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"alumnet/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	SearchDirectory(ctx context.Context, query string, role models.UserRole, currentUserID uint, limit int) ([]models.User, error)
	ListPendingApproval(ctx context.Context) ([]models.User, error)
	SetApproved(ctx context.Context, id uint, approved bool) (bool, error)
	GetBasicInfoByID(ctx context.Context, id uint) (*models.UserBasicInfo, error)
	GetMultipleBasicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserBasicInfo, error)
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create creates a new user record in the database.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by their ID.
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err // Handles gorm.ErrRecordNotFound as well
	}
	return &user, nil
}

// GetByUsername retrieves a user by their username.
func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user record in the database.
func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Save(user).Error
}

// Delete soft-deletes a user record. Used when an admin rejects a
// registration.
func (r *gormUserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, id).Error
}

// SearchDirectory performs a case-insensitive directory search over
// username, nickname and major. Only approved accounts are returned and
// the caller is excluded. An empty role matches every role.
func (r *gormUserRepository) SearchDirectory(ctx context.Context, query string, role models.UserRole, currentUserID uint, limit int) ([]models.User, error) {
	var users []models.User
	searchTerm := "%" + strings.ToLower(query) + "%"
	if limit <= 0 {
		limit = 20
	}

	q := r.db.WithContext(ctx).
		Where("(LOWER(username) LIKE ? OR LOWER(nickname) LIKE ? OR LOWER(major) LIKE ?) AND id != ? AND approved = ?",
			searchTerm, searchTerm, searchTerm, currentUserID, true).
		Select("id", "username", "nickname", "avatar_url", "role", "graduation_year", "major").
		Limit(limit)

	if role != "" {
		q = q.Where("role = ?", role)
	}

	err := q.Find(&users).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return users, nil // 搜索无结果不是错误
		}
		return nil, err
	}
	return users, nil
}

// ListPendingApproval returns all accounts still waiting for an admin
// decision, oldest registration first.
func (r *gormUserRepository) ListPendingApproval(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("approved = ? AND role != ?", false, models.RoleAdmin).
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

// SetApproved flips the approval flag for a single account.
func (r *gormUserRepository) SetApproved(ctx context.Context, id uint, approved bool) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("approved", approved)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetBasicInfoByID retrieves minimal public user info by ID.
func (r *gormUserRepository) GetBasicInfoByID(ctx context.Context, id uint) (*models.UserBasicInfo, error) {
	var basicInfo models.UserBasicInfo
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "username", "nickname", "avatar_url", "role").
		Where("id = ?", id).
		First(&basicInfo).Error
	if err != nil {
		return nil, err
	}
	return &basicInfo, nil
}

// GetMultipleBasicInfoByIDs retrieves minimal public user info for a list of user IDs.
func (r *gormUserRepository) GetMultipleBasicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserBasicInfo, error) {
	var basicInfos []*models.UserBasicInfo
	if len(userIDs) == 0 {
		return basicInfos, nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "username", "nickname", "avatar_url", "role").
		Where("id IN ?", userIDs).
		Find(&basicInfos).Error
	if err != nil {
		return nil, err
	}
	return basicInfos, nil
}
