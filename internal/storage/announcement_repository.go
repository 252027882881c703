package storage

import (
	"context"

	"gorm.io/gorm"

	"alumnet/internal/models"
)

// AnnouncementRepository 定义了公告数据操作的接口。
type AnnouncementRepository interface {
	Create(ctx context.Context, announcement *models.Announcement) error
	GetByID(ctx context.Context, id uint) (*models.Announcement, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.Announcement, error)
}

type gormAnnouncementRepository struct {
	db *gorm.DB
}

// NewGormAnnouncementRepository 创建一个新的基于 GORM 的 AnnouncementRepository。
func NewGormAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &gormAnnouncementRepository{db: db}
}

func (r *gormAnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	return r.db.WithContext(ctx).Create(announcement).Error
}

func (r *gormAnnouncementRepository) GetByID(ctx context.Context, id uint) (*models.Announcement, error) {
	var announcement models.Announcement
	err := r.db.WithContext(ctx).Preload("Author").First(&announcement, id).Error
	if err != nil {
		return nil, err
	}
	return &announcement, nil
}

func (r *gormAnnouncementRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Announcement{}, id).Error
}

// List 按创建时间倒序返回公告，支持分页。
func (r *gormAnnouncementRepository) List(ctx context.Context, limit, offset int) ([]models.Announcement, error) {
	var announcements []models.Announcement
	query := r.db.WithContext(ctx).Preload("Author").Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&announcements).Error
	return announcements, err
}
