package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GenerateHandler struct {
	gen Generator
	log *slog.Logger
}

func NewGenerateHandler(gen Generator, log *slog.Logger) *GenerateHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GenerateHandler{gen: gen, log: log}
}

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// Generate forwards the prompt verbatim and returns the model's text.
func (h *GenerateHandler) Generate(ctx *gin.Context) {
	var req GenerateRequest

	if ctx.Request.ContentLength != 0 && !BindJSON(ctx, &req) {
		return
	}

	reply, err := h.gen.Generate(ctx.Request.Context(), req.Prompt)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "generate failed",
			"prompt_len", len(req.Prompt),
			"err", err,
		)
		RespondInternal(ctx, "Something went wrong")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"reply": reply})
}
