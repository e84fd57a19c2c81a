package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/cache"
	"phonebay/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OTP 参数
const (
	OTPLength      = 6
	OTPTTL         = 5 * time.Minute
	OTPCooldown    = 60 * time.Second
	otpMaxAttempts = 5
	otpKeyPrefix   = "otp:code:"
)

// otpEntry 缓存中的验证码
type otpEntry struct {
	Code      string    `json:"code"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ==================== AuthService 认证服务 ====================

// AuthService 注册、登录、Token 刷新与手机验证码
type AuthService struct {
	users repository.UserRepository
	cache cache.Cache
	sms   SMSSender
	now   func() time.Time
	log   *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(users repository.UserRepository, c cache.Cache, sms SMSSender) *AuthService {
	return &AuthService{
		users: users,
		cache: c,
		sms:   sms,
		now:   time.Now,
		log:   zap.L().Named("auth"),
	}
}

// Register 注册，默认角色 customer
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	exists, err := s.users.ExistsByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflictf("手机号已注册")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Phone:        phone,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Role:         model.RoleCustomer,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, translateErr(err)
	}
	s.log.Info("用户注册", zap.Int64("user_id", user.ID), zap.String("phone", utils.MaskPhone(phone)))
	return s.issueTokens(user)
}

// Login 手机号 + 密码登录
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	now := s.now()
	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	return s.issueTokens(user)
}

// Refresh 用 refresh token 换新的 Token 对
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := middleware.ParseToken(refreshToken)
	if err != nil || claims.Subject != middleware.SubjectRefresh {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	return s.issueTokens(user)
}

// Me 当前用户信息
func (s *AuthService) Me(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "用户")
	}
	return toUserInfo(user), nil
}

// ==================== 手机验证码 ====================

// RequestOTP 发送验证码，同一手机号 60 秒内只能请求一次
func (s *AuthService) RequestOTP(ctx context.Context, rawPhone string) (*dto.OTPResponse, error) {
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	if exists, err := s.users.ExistsByPhone(ctx, phone); err != nil {
		return nil, err
	} else if !exists {
		return nil, notFoundf("用户")
	}

	// 1. 冷却
	if res := middleware.GetCooldown().Check("otp:"+phone, OTPCooldown); !res.Allowed {
		return nil, &RateLimitError{RetryAfter: res.RetryAfter}
	}

	// 2. 生成并缓存
	code, err := utils.GenerateDigits(OTPLength)
	if err != nil {
		return nil, err
	}
	entry := otpEntry{Code: code, ExpiresAt: s.now().Add(OTPTTL)}
	if err := s.cache.Set(ctx, otpKeyPrefix+phone, entry, OTPTTL); err != nil {
		return nil, err
	}

	// 3. 发送：优先模板，模板不存在时发纯文本
	minutes := int(OTPTTL / time.Minute)
	_, err = s.sms.SendTemplate(ctx, model.TemplateOTP, phone, map[string]string{
		"code":    code,
		"minutes": fmt.Sprint(minutes),
	})
	if errors.Is(err, ErrNotFound) {
		msg := fmt.Sprintf("Your Phone Bay verification code is %s. It expires in %d minutes.", code, minutes)
		_, err = s.sms.Send(ctx, phone, msg, model.TemplateOTP)
	}
	if err != nil {
		_ = s.cache.Delete(ctx, otpKeyPrefix+phone)
		middleware.GetCooldown().Reset("otp:" + phone)
		return nil, err
	}
	return &dto.OTPResponse{ExpiresIn: int(OTPTTL / time.Second)}, nil
}

// VerifyOTP 校验验证码（一次性），通过后标记手机号已验证并返回 Token
func (s *AuthService) VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest) (*dto.TokenResponse, error) {
	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		return nil, ErrInvalidOTP
	}
	key := otpKeyPrefix + phone

	var entry otpEntry
	found, err := s.cache.Get(ctx, key, &entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidOTP
	}
	// 过期时间以首次签发为准，缓存 TTL 只是兜底
	remaining := entry.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		_ = s.cache.Delete(ctx, key)
		return nil, ErrInvalidOTP
	}
	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(req.Code)) != 1 {
		entry.Attempts++
		if entry.Attempts >= otpMaxAttempts {
			_ = s.cache.Delete(ctx, key)
		} else {
			// 失败次数写回，TTL 只用剩余时间
			_ = s.cache.Set(ctx, key, entry, remaining)
		}
		return nil, ErrInvalidOTP
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return nil, err
	}

	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, notFound(err, "用户")
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	if !user.PhoneVerified {
		if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"phone_verified": true}); err != nil {
			return nil, err
		}
		user.PhoneVerified = true
	}
	return s.issueTokens(user)
}

// ==================== 内部方法 ====================

func (s *AuthService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	access, refresh, err := middleware.GenerateTokenPair(user.ID, user.Phone, user.Role)
	if err != nil {
		return nil, fmt.Errorf("生成 Token 失败: %w", err)
	}
	return &dto.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.now().Add(middleware.GetJWTConfig().AccessTokenTTL),
		User:         toUserInfo(user),
	}, nil
}

func toUserInfo(u *model.User) *dto.UserInfo {
	return &dto.UserInfo{
		ID:            u.ID,
		Name:          u.Name,
		Phone:         u.Phone,
		Email:         u.Email,
		Role:          u.Role,
		PhoneVerified: u.PhoneVerified,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}
