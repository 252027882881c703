package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"alumnet/internal/models"
)

// PostRepository 定义了动态、点赞和评论的数据操作接口。
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uint) (*models.Post, error)
	DeletePost(ctx context.Context, id uint) error
	ListFeed(ctx context.Context, limit, offset int) ([]models.Post, error)

	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, postID, userID uint) (bool, error)
	CountLikes(ctx context.Context, postID uint) (int64, error)
	HasLiked(ctx context.Context, postID, userID uint) (bool, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id uint) (*models.Comment, error)
	DeleteComment(ctx context.Context, id uint) error
	ListComments(ctx context.Context, postID uint) ([]models.Comment, error)
	CountComments(ctx context.Context, postID uint) (int64, error)
}

// gormPostRepository 使用 GORM 实现 PostRepository。
type gormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository 创建一个新的基于 GORM 的 PostRepository。
func NewGormPostRepository(db *gorm.DB) PostRepository {
	return &gormPostRepository{db: db}
}

func (r *gormPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *gormPostRepository) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *gormPostRepository) DeletePost(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Post{}, id).Error
}

// ListFeed 按创建时间倒序返回动态，支持分页。
func (r *gormPostRepository) ListFeed(ctx context.Context, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	query := r.db.WithContext(ctx).Preload("Author").Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&posts).Error
	return posts, err
}

// CreateLike 插入一条点赞记录。重复点赞会触发唯一索引冲突并返回
// gorm.ErrDuplicatedKey，由服务层决定如何处理。
func (r *gormPostRepository) CreateLike(ctx context.Context, like *models.Like) error {
	return r.db.WithContext(ctx).Create(like).Error
}

func (r *gormPostRepository) DeleteLike(ctx context.Context, postID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormPostRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

func (r *gormPostRepository) HasLiked(ctx context.Context, postID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormPostRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *gormPostRepository) GetCommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *gormPostRepository) DeleteComment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

// ListComments 按时间正序返回一条动态下的所有评论。
func (r *gormPostRepository) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return comments, nil
}

func (r *gormPostRepository) CountComments(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}
