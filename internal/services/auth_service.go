package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"alumnet/internal/auth"
	"alumnet/internal/config"
	"alumnet/internal/models"
	"alumnet/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = errors.New("用户名或邮箱已被注册")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidRole        = errors.New("无效的账号类型")
	ErrUserNotFound       = errors.New("用户不存在")
)

// RegisterInput carries the fields collected at sign-up.
type RegisterInput struct {
	Username       string
	Password       string
	Email          string
	Nickname       string
	Role           models.UserRole
	GraduationYear int
	Major          string
}

// AuthService 负责注册、登录与令牌签发。
// 新注册的账号处于未审核状态,需要管理员批准后才能使用社区功能。
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
}

type authService struct {
	userRepo storage.UserRepository
	authCfg  config.AuthConfig
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(userRepo storage.UserRepository, authCfg config.AuthConfig) AuthService {
	return &authService{
		userRepo: userRepo,
		authCfg:  authCfg,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	// 只允许注册学生或校友账号,管理员账号由 CLI 工具创建。
	if input.Role != models.RoleStudent && input.Role != models.RoleAlumni {
		return nil, ErrInvalidRole
	}

	if _, err := s.userRepo.GetByUsername(ctx, input.Username); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("检查用户名时出错: %w", err)
	}
	if input.Email != "" {
		if _, err := s.userRepo.GetByEmail(ctx, input.Email); err == nil {
			return nil, ErrUserAlreadyExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("检查邮箱时出错: %w", err)
		}
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", input.Username, err)
		return nil, fmt.Errorf("密码处理失败: %w", err)
	}

	user := &models.User{
		Username:       input.Username,
		PasswordHash:   hashed,
		Email:          input.Email,
		Nickname:       input.Nickname,
		Role:           input.Role,
		Approved:       false,
		GraduationYear: input.GraduationYear,
		Major:          input.Major,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		log.Printf("Error creating user %s: %v", input.Username, err)
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and returns a signed JWT along with the
// user record. A wrong username and a wrong password are deliberately
// indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("查询用户时出错: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user, s.authCfg)
	if err != nil {
		log.Printf("Error generating token for user %s: %v", username, err)
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}
	return token, user, nil
}
