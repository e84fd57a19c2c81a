package controller

import (
	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Register 注册
// @Summary 手机号注册
// @Tags Auth
// @Accept json
// @Param body body dto.RegisterRequest true "注册信息"
// @Success 201 {object} dto.TokenResponse
// @Failure 409 {object} map[string]string "手机号已注册"
// @Router /api/auth/register [post]
func (ctrl *AuthController) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.authService.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, resp)
}

// Login 登录
// @Summary 手机号 + 密码登录
// @Tags Auth
// @Accept json
// @Param body body dto.LoginRequest true "登录信息"
// @Success 200 {object} dto.TokenResponse
// @Failure 401 {object} map[string]string
// @Router /api/auth/login [post]
func (ctrl *AuthController) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.authService.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// Refresh 刷新 Token
// @Summary 使用 refresh token 换取新的 Token 对
// @Tags Auth
// @Param body body dto.RefreshTokenRequest true "refresh token"
// @Success 200 {object} dto.TokenResponse
// @Router /api/auth/refresh [post]
func (ctrl *AuthController) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// RequestOTP 发送手机验证码
// @Summary 发送验证码（60 秒冷却）
// @Tags Auth
// @Param body body dto.OTPRequest true "手机号"
// @Success 200 {object} dto.OTPResponse
// @Failure 429 {object} map[string]string "请求过于频繁"
// @Router /api/auth/otp/request [post]
func (ctrl *AuthController) RequestOTP(c *gin.Context) {
	var req dto.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.authService.RequestOTP(c.Request.Context(), req.Phone)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, resp, "验证码已发送")
}

// VerifyOTP 校验验证码并登录
// @Summary 校验验证码
// @Tags Auth
// @Param body body dto.VerifyOTPRequest true "手机号与验证码"
// @Success 200 {object} dto.TokenResponse
// @Router /api/auth/otp/verify [post]
func (ctrl *AuthController) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.authService.VerifyOTP(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// Me 当前用户
// @Summary 当前登录用户信息
// @Tags Auth
// @Security BearerAuth
// @Success 200 {object} dto.UserInfo
// @Router /api/auth/me [get]
func (ctrl *AuthController) Me(c *gin.Context) {
	info, err := ctrl.authService.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, info)
}
