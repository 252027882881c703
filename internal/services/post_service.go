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

var (
	ErrPostNotFound    = errors.New("动态不存在")
	ErrCommentNotFound = errors.New("评论不存在")
	ErrEmptyContent    = errors.New("内容不能为空")
	ErrNotAuthor       = errors.New("没有权限执行该操作")
)

// PostService 负责动态发布、信息流、点赞与评论。
type PostService interface {
	CreatePost(ctx context.Context, authorID uint, content, imageURL string) (*models.Post, error)
	GetPost(ctx context.Context, postID, viewerID uint) (*models.PostWithCounts, error)
	DeletePost(ctx context.Context, callerID uint, callerRole models.UserRole, postID uint) error
	ListFeed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.PostWithCounts, error)

	LikePost(ctx context.Context, userID, postID uint) error
	UnlikePost(ctx context.Context, userID, postID uint) error

	AddComment(ctx context.Context, authorID, postID uint, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, callerID uint, callerRole models.UserRole, commentID uint) error
	ListComments(ctx context.Context, postID uint) ([]models.Comment, error)
}

type postService struct {
	postRepo storage.PostRepository
}

// NewPostService creates a new PostService instance.
func NewPostService(postRepo storage.PostRepository) PostService {
	return &postService{postRepo: postRepo}
}

func (s *postService) CreatePost(ctx context.Context, authorID uint, content, imageURL string) (*models.Post, error) {
	if strings.TrimSpace(content) == "" && imageURL == "" {
		return nil, ErrEmptyContent
	}
	post := &models.Post{
		AuthorID: authorID,
		Content:  content,
		ImageURL: imageURL,
	}
	if err := s.postRepo.CreatePost(ctx, post); err != nil {
		log.Printf("Error creating post for user %d: %v", authorID, err)
		return nil, fmt.Errorf("发布动态失败: %w", err)
	}
	return post, nil
}

func (s *postService) GetPost(ctx context.Context, postID, viewerID uint) (*models.PostWithCounts, error) {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("获取动态失败: %w", err)
	}
	return s.withCounts(ctx, post, viewerID)
}

// DeletePost removes a post. Only the author or an admin may delete it.
func (s *postService) DeletePost(ctx context.Context, callerID uint, callerRole models.UserRole, postID uint) error {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("获取动态失败: %w", err)
	}
	if post.AuthorID != callerID && callerRole != models.RoleAdmin {
		return ErrNotAuthor
	}
	if err := s.postRepo.DeletePost(ctx, postID); err != nil {
		log.Printf("Error deleting post %d: %v", postID, err)
		return fmt.Errorf("删除动态失败: %w", err)
	}
	return nil
}

func (s *postService) ListFeed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.PostWithCounts, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	posts, err := s.postRepo.ListFeed(ctx, limit, offset)
	if err != nil {
		log.Printf("Error listing feed: %v", err)
		return nil, fmt.Errorf("获取信息流失败: %w", err)
	}

	result := make([]*models.PostWithCounts, 0, len(posts))
	for i := range posts {
		enriched, err := s.withCounts(ctx, &posts[i], viewerID)
		if err != nil {
			return nil, err
		}
		result = append(result, enriched)
	}
	return result, nil
}

// LikePost is idempotent: liking an already-liked post is a no-op. The
// unique (post, user) index resolves the concurrent double-tap case.
func (s *postService) LikePost(ctx context.Context, userID, postID uint) error {
	if _, err := s.postRepo.GetPostByID(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("获取动态失败: %w", err)
	}
	like := &models.Like{PostID: postID, UserID: userID}
	if err := s.postRepo.CreateLike(ctx, like); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		log.Printf("Error liking post %d by user %d: %v", postID, userID, err)
		return fmt.Errorf("点赞失败: %w", err)
	}
	return nil
}

// UnlikePost is likewise idempotent; removing a nonexistent like succeeds.
func (s *postService) UnlikePost(ctx context.Context, userID, postID uint) error {
	if _, err := s.postRepo.DeleteLike(ctx, postID, userID); err != nil {
		log.Printf("Error unliking post %d by user %d: %v", postID, userID, err)
		return fmt.Errorf("取消点赞失败: %w", err)
	}
	return nil
}

func (s *postService) AddComment(ctx context.Context, authorID, postID uint, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if _, err := s.postRepo.GetPostByID(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("获取动态失败: %w", err)
	}
	comment := &models.Comment{
		PostID:   postID,
		AuthorID: authorID,
		Content:  content,
	}
	if err := s.postRepo.CreateComment(ctx, comment); err != nil {
		log.Printf("Error commenting on post %d by user %d: %v", postID, authorID, err)
		return nil, fmt.Errorf("发表评论失败: %w", err)
	}
	return comment, nil
}

func (s *postService) DeleteComment(ctx context.Context, callerID uint, callerRole models.UserRole, commentID uint) error {
	comment, err := s.postRepo.GetCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("获取评论失败: %w", err)
	}
	if comment.AuthorID != callerID && callerRole != models.RoleAdmin {
		return ErrNotAuthor
	}
	if err := s.postRepo.DeleteComment(ctx, commentID); err != nil {
		log.Printf("Error deleting comment %d: %v", commentID, err)
		return fmt.Errorf("删除评论失败: %w", err)
	}
	return nil
}

func (s *postService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments, err := s.postRepo.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("获取评论失败: %w", err)
	}
	return comments, nil
}

func (s *postService) withCounts(ctx context.Context, post *models.Post, viewerID uint) (*models.PostWithCounts, error) {
	likeCount, err := s.postRepo.CountLikes(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("统计点赞失败: %w", err)
	}
	commentCount, err := s.postRepo.CountComments(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("统计评论失败: %w", err)
	}
	liked, err := s.postRepo.HasLiked(ctx, post.ID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("查询点赞状态失败: %w", err)
	}
	enriched := &models.PostWithCounts{
		Post:         *post,
		LikeCount:    likeCount,
		CommentCount: commentCount,
		LikedByMe:    liked,
	}
	if post.Author.ID != 0 {
		enriched.AuthorInfo = &models.UserBasicInfo{
			ID:        post.Author.ID,
			Username:  post.Author.Username,
			Nickname:  post.Author.Nickname,
			AvatarURL: post.Author.AvatarURL,
			Role:      post.Author.Role,
		}
	}
	return enriched, nil
}
