package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"alumnet/internal/models"
	"alumnet/internal/storage"

	"gorm.io/gorm"
)

var ErrAnnouncementNotFound = errors.New("公告不存在")

// AnnouncementService 负责全站公告。发布与删除仅限管理员,由调用方的
// 路由层保证;读取对所有已审核用户开放。
type AnnouncementService interface {
	PublishAnnouncement(ctx context.Context, authorID uint, title, body string) (*models.Announcement, error)
	DeleteAnnouncement(ctx context.Context, announcementID uint) error
	ListAnnouncements(ctx context.Context, limit, offset int) ([]models.Announcement, error)
}

type announcementService struct {
	announcementRepo storage.AnnouncementRepository
}

// NewAnnouncementService creates a new AnnouncementService instance.
func NewAnnouncementService(announcementRepo storage.AnnouncementRepository) AnnouncementService {
	return &announcementService{announcementRepo: announcementRepo}
}

func (s *announcementService) PublishAnnouncement(ctx context.Context, authorID uint, title, body string) (*models.Announcement, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return nil, ErrEmptyContent
	}
	announcement := &models.Announcement{
		AuthorID: authorID,
		Title:    title,
		Body:     body,
	}
	if err := s.announcementRepo.Create(ctx, announcement); err != nil {
		log.Printf("Error publishing announcement by user %d: %v", authorID, err)
		return nil, fmt.Errorf("发布公告失败: %w", err)
	}
	return announcement, nil
}

func (s *announcementService) DeleteAnnouncement(ctx context.Context, announcementID uint) error {
	if _, err := s.announcementRepo.GetByID(ctx, announcementID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnnouncementNotFound
		}
		return fmt.Errorf("获取公告失败: %w", err)
	}
	if err := s.announcementRepo.Delete(ctx, announcementID); err != nil {
		log.Printf("Error deleting announcement %d: %v", announcementID, err)
		return fmt.Errorf("删除公告失败: %w", err)
	}
	return nil
}

func (s *announcementService) ListAnnouncements(ctx context.Context, limit, offset int) ([]models.Announcement, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	announcements, err := s.announcementRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取公告列表失败: %w", err)
	}
	return announcements, nil
}
