// Package service 包含了应用的业务逻辑层。
package service

import (
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/repository"
	"doc-chat-go/pkg/hash"
	"doc-chat-go/pkg/token"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(email, password string) (*model.User, error)
	Login(email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	GetByID(userID uint) (*model.User, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(email, password string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperr.New(apperr.InvalidRequest, "邮箱和密码不能为空")
	}

	// 1. 检查邮箱是否已注册
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return nil, apperr.New(apperr.InvalidRequest, "该邮箱已注册")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.Persistence, "查询用户失败", err)
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "创建用户失败", err)
	}

	// 3. 创建新用户
	newUser := &model.User{
		Email:    email,
		Password: hashedPassword,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "创建用户失败", err)
	}

	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
// 用户不存在与密码错误返回同一个错误，不泄露邮箱是否注册。
func (s *userService) Login(email, password string) (accessToken, refreshToken string, err error) {
	email = strings.TrimSpace(strings.ToLower(email))

	// 1. 查找用户
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", apperr.New(apperr.Unauthorized, "无效的凭证")
		}
		return "", "", apperr.Wrap(apperr.Persistence, "查询用户失败", err)
	}

	// 2. 验证密码
	if !hash.CheckPasswordHash(password, user.Password) {
		return "", "", apperr.New(apperr.Unauthorized, "无效的凭证")
	}

	// 3. 生成 access token 和 refresh token
	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", "", apperr.Wrap(apperr.Persistence, "签发 token 失败", err)
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", apperr.Wrap(apperr.Persistence, "签发 token 失败", err)
	}

	return accessToken, refreshToken, nil
}

// RefreshToken 校验 refresh token 并签发新的一对 token。
func (s *userService) RefreshToken(refreshTokenString string) (string, string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", apperr.Wrap(apperr.Unauthorized, "无效的 refresh token", err)
	}

	// 确认用户仍然存在
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return "", "", apperr.New(apperr.Unauthorized, "用户不存在")
	}

	newAccessToken, err := s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", "", apperr.Wrap(apperr.Persistence, "签发 token 失败", err)
	}
	newRefreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", apperr.Wrap(apperr.Persistence, "签发 token 失败", err)
	}
	return newAccessToken, newRefreshToken, nil
}

// GetByID 根据 ID 获取用户详细信息。
func (s *userService) GetByID(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}
