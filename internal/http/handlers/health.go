package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

// create a new instance of the health handler
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Root(ctx *gin.Context) {
	ctx.String(http.StatusOK, "This Is Test EndPoint => Requested Success!")
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports ready only while the user store answers a ping.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.store == nil {
		ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	pctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(pctx); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "store unreachable"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
