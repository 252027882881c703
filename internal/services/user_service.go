package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"alumnet/internal/models"
	"alumnet/internal/storage"

	"gorm.io/gorm"
)

// ProfileUpdate holds the fields a user may change on their own profile.
// Nil pointers mean "leave unchanged".
type ProfileUpdate struct {
	Nickname       *string
	AvatarURL      *string
	Bio            *string
	GraduationYear *int
	Major          *string
}

// UserService 提供个人资料维护、通讯录检索以及管理员的审核操作。
type UserService interface {
	GetProfile(ctx context.Context, userID uint) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error)
	SearchDirectory(ctx context.Context, callerID uint, query string, role models.UserRole, limit int) ([]models.User, error)

	// Admin operations.
	ListPendingUsers(ctx context.Context) ([]models.User, error)
	ApproveUser(ctx context.Context, userID uint) error
	RejectUser(ctx context.Context, userID uint) error
}

type userService struct {
	userRepo storage.UserRepository
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo storage.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户资料失败: %w", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户资料失败: %w", err)
	}

	if update.Nickname != nil {
		user.Nickname = *update.Nickname
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.GraduationYear != nil {
		user.GraduationYear = *update.GraduationYear
	}
	if update.Major != nil {
		user.Major = *update.Major
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		log.Printf("Error updating profile for user %d: %v", userID, err)
		return nil, fmt.Errorf("更新用户资料失败: %w", err)
	}
	return user, nil
}

// SearchDirectory searches approved accounts by username, nickname or
// major. The caller is always excluded from the results.
func (s *userService) SearchDirectory(ctx context.Context, callerID uint, query string, role models.UserRole, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	results, err := s.userRepo.SearchDirectory(ctx, query, role, callerID, limit)
	if err != nil {
		log.Printf("Error searching directory (query=%q role=%q): %v", query, role, err)
		return nil, fmt.Errorf("检索通讯录失败: %w", err)
	}
	return results, nil
}

func (s *userService) ListPendingUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.ListPendingApproval(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取待审核用户失败: %w", err)
	}
	return users, nil
}

func (s *userService) ApproveUser(ctx context.Context, userID uint) error {
	ok, err := s.userRepo.SetApproved(ctx, userID, true)
	if err != nil {
		log.Printf("Error approving user %d: %v", userID, err)
		return fmt.Errorf("审核用户失败: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

// RejectUser deletes an unapproved registration outright.
func (s *userService) RejectUser(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("查询用户失败: %w", err)
	}
	if user.Approved {
		// Only pending registrations can be rejected.
		return ErrUserNotFound
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		log.Printf("Error rejecting user %d: %v", userID, err)
		return fmt.Errorf("删除用户失败: %w", err)
	}
	return nil
}
