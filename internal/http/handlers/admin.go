package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserAdmin interface {
	GetUser(ctx context.Context, id string) (user.User, error)
	AdminDeleteUser(ctx context.Context, id string) error
}

type AdminHandler struct {
	users UserAdmin
	log   *slog.Logger
}

func NewAdminHandler(users UserAdmin, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{users: users, log: log}
}

func (h *AdminHandler) GetUser(ctx *gin.Context) {
	u, err := h.users.GetUser(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondOK(ctx, "User retrieved successfully", u)
}

func (h *AdminHandler) DeleteUser(ctx *gin.Context, caller user.User) {
	id := ctx.Param("id")

	if err := h.users.AdminDeleteUser(ctx.Request.Context(), id); err != nil {
		h.fail(ctx, err)
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user deleted by admin",
		"user_id", id,
		"admin_id", caller.ID,
	)
	RespondOK(ctx, "User deleted successfully", nil)
}

func (h *AdminHandler) fail(ctx *gin.Context, err error) {
	if errors.Is(err, user.ErrUserNotFound) {
		RespondNotFound(ctx, "User not found")
		return
	}

	h.log.ErrorContext(ctx.Request.Context(), "admin request failed",
		"route", ctx.FullPath(),
		"err", err,
	)
	RespondInternal(ctx, "Server error")
}
