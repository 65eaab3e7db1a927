package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/careerhub/internal/auth"
	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/geocoder89/careerhub/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	accessCookie  = "token"
	refreshCookie = "refreshToken"
	legacyCookie  = "authToken"
)

type AuthService interface {
	SignUp(ctx context.Context, in service.SignUpInput) (user.User, error)
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	Logout(ctx context.Context, caller *user.User) time.Time
	CurrentUser(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error)
	ChangePassword(ctx context.Context, id, current, next string) error
	ForgotPassword(ctx context.Context, email string) (service.ResetTicket, error)
	ResetPassword(ctx context.Context, token, next string) error
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	DeleteAccount(ctx context.Context, id, password string) error
}

type AuthHandler struct {
	svc          AuthService
	secureCookie bool
	log          *slog.Logger
}

func NewAuthHandler(svc AuthService, secureCookie bool, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{svc: svc, secureCookie: secureCookie, log: log}
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Age      *int   `json:"age" binding:"required,gte=0"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest lists the only fields a caller may change. Anything else in the body is ignored.
type UpdateProfileRequest struct {
	Name       *string           `json:"name"`
	Phone      *string           `json:"phone"`
	Age        *int              `json:"age" binding:"omitempty,gte=0"`
	Country    *string           `json:"country"`
	Education  *[]user.Education `json:"education"`
	Skills     *[]user.Skill     `json:"skills"`
	Interests  *[]string         `json:"interests"`
	Experience *[]string         `json:"experience"`
	Languages  *[]string         `json:"languages"`
	Resume     *string           `json:"resume"`
}

func (r UpdateProfileRequest) toUpdate() user.ProfileUpdate {
	return user.ProfileUpdate{
		Name:       r.Name,
		Phone:      r.Phone,
		Age:        r.Age,
		Country:    r.Country,
		Education:  r.Education,
		Skills:     r.Skills,
		Interests:  r.Interests,
		Experience: r.Experience,
		Languages:  r.Languages,
		Resume:     r.Resume,
	}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type RefreshTokenRequest struct {
	Token string `json:"token"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

type loginUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	LastLogin time.Time `json:"lastLogin"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	_, err := h.svc.SignUp(ctx.Request.Context(), service.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Age:      *req.Age,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			RespondError(ctx, http.StatusBadRequest, "email_taken", "User Already Exists", nil)
			return
		}
		h.fail(ctx, err, "Error Creating User")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"Message": "User Created Successfully"})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.svc.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(ctx, err, "Server error during login")
		return
	}

	h.setCookie(ctx, accessCookie, res.AccessToken, res.AccessTTL)
	h.setCookie(ctx, refreshCookie, res.RefreshToken, res.RefreshTTL)

	RespondOK(ctx, "Login successful", gin.H{
		"token":        res.AccessToken,
		"refreshToken": res.RefreshToken,
		"expiresIn":    res.ExpiresIn(),
		"user": loginUser{
			ID:        res.User.ID,
			Name:      res.User.Name,
			Email:     res.User.Email,
			Role:      res.User.Role,
			LastLogin: res.User.LastLogin,
		},
	})
}

// Logout clears the session cookies and always answers 200.
func (h *AuthHandler) Logout(ctx *gin.Context, caller *user.User) {
	for _, name := range []string{accessCookie, refreshCookie, legacyCookie} {
		h.clearCookie(ctx, name)
	}

	at := h.svc.Logout(ctx.Request.Context(), caller)

	RespondOK(ctx, "Logged Out Successfully", gin.H{
		"logoutTime": at.UTC().Format(time.RFC3339Nano),
		"message":    "All sessions cleared",
	})
}

func (h *AuthHandler) Me(ctx *gin.Context, caller user.User) {
	u, err := h.svc.CurrentUser(ctx.Request.Context(), caller.ID)
	if err != nil {
		h.fail(ctx, err, "Server error")
		return
	}

	RespondOK(ctx, "User profile retrieved successfully", u)
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context, caller user.User) {
	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.svc.UpdateProfile(ctx.Request.Context(), caller.ID, req.toUpdate())
	if err != nil {
		h.fail(ctx, err, "Server error")
		return
	}

	RespondOK(ctx, "Profile updated successfully", u)
}

func (h *AuthHandler) ChangePassword(ctx *gin.Context, caller user.User) {
	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	err := h.svc.ChangePassword(ctx.Request.Context(), caller.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			RespondError(ctx, http.StatusBadRequest, "invalid_credentials", "Current password is incorrect", nil)
			return
		}
		h.fail(ctx, err, "Server error")
		return
	}

	RespondOK(ctx, "Password changed successfully", nil)
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	ticket, err := h.svc.ForgotPassword(ctx.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			RespondNotFound(ctx, "User with this email does not exist")
			return
		}
		h.fail(ctx, err, "Server error")
		return
	}

	// no mail delivery: the token goes straight back to the caller
	ctx.JSON(http.StatusOK, gin.H{
		"status":     true,
		"message":    "Password reset token generated",
		"resetToken": ticket.Token,
		"expiresIn":  ticket.ExpiresIn(),
	})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if err := h.svc.ResetPassword(ctx.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(ctx, err, "Server error")
		return
	}

	RespondOK(ctx, "Password reset successfully", nil)
}

// RefreshToken reads the refresh token from the body, falling back to the refreshToken cookie.
func (h *AuthHandler) RefreshToken(ctx *gin.Context) {
	var req RefreshTokenRequest

	if ctx.Request.ContentLength != 0 && !BindJSON(ctx, &req) {
		return
	}
	if req.Token == "" {
		req.Token, _ = ctx.Cookie(refreshCookie)
	}
	if req.Token == "" {
		RespondBadRequest(ctx, "Token is required", nil)
		return
	}

	token, err := h.svc.RefreshAccessToken(ctx.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			RespondUnauthorized(ctx, "unauthorized", "User not found")
			return
		}
		h.fail(ctx, err, "Server error")
		return
	}

	RespondOK(ctx, "Token refreshed successfully", gin.H{"token": token})
}

func (h *AuthHandler) DeleteAccount(ctx *gin.Context, caller user.User) {
	var req DeleteAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	err := h.svc.DeleteAccount(ctx.Request.Context(), caller.ID, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			RespondError(ctx, http.StatusBadRequest, "invalid_credentials", "Password is incorrect", nil)
			return
		}
		h.fail(ctx, err, "Server error")
		return
	}

	for _, name := range []string{accessCookie, refreshCookie, legacyCookie} {
		h.clearCookie(ctx, name)
	}

	RespondOK(ctx, "Account deleted successfully", nil)
}

// fail maps service errors onto the public error taxonomy.
func (h *AuthHandler) fail(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		RespondBadRequest(ctx, err.Error(), nil)
	case errors.Is(err, service.ErrEmailTaken):
		RespondError(ctx, http.StatusBadRequest, "email_taken", "User Already Exists", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		RespondError(ctx, http.StatusBadRequest, "invalid_credentials", "Invalid Credentials", nil)
	case errors.Is(err, service.ErrInvalidResetToken):
		RespondError(ctx, http.StatusBadRequest, "invalid_reset_token", "Invalid or expired reset token", nil)
	case errors.Is(err, auth.ErrTokenExpired):
		RespondUnauthorized(ctx, "token_expired", "Token expired")
	case errors.Is(err, auth.ErrTokenInvalid):
		RespondUnauthorized(ctx, "invalid_token", "Invalid token")
	case errors.Is(err, service.ErrUserNotFound):
		RespondNotFound(ctx, "User not found")
	default:
		h.log.ErrorContext(ctx.Request.Context(), "auth request failed",
			"route", ctx.FullPath(),
			"err", err,
		)
		RespondInternal(ctx, fallback)
	}
}

func (h *AuthHandler) setCookie(ctx *gin.Context, name, value string, ttl time.Duration) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(name, value, int(ttl.Seconds()), "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearCookie(ctx *gin.Context, name string) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(name, "", -1, "/", "", h.secureCookie, true)
}
