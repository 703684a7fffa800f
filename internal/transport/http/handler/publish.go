package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/instagram"
)

// Publisher runs one two-phase publish synchronously.
type Publisher interface {
	Publish(ctx context.Context, imageURL, caption string) instagram.PublishResult
}

// TokenRefresher is the operator-facing slice of the token manager.
type TokenRefresher interface {
	ForceRefresh(ctx context.Context) error
}

type PublishHandler struct {
	publisher Publisher
	tokens    TokenRefresher
	logger    *slog.Logger
}

func NewPublishHandler(publisher Publisher, tokens TokenRefresher, logger *slog.Logger) *PublishHandler {
	return &PublishHandler{
		publisher: publisher,
		tokens:    tokens,
		logger:    logger.With("component", "publish_handler"),
	}
}

type publishNowRequest struct {
	ImageURL string `json:"image_url" binding:"required,url"`
	Caption  string `json:"caption"`
}

type publishNowResponse struct {
	Success     bool   `json:"success"`
	ContainerID string `json:"container_id,omitempty"`
	MediaID     string `json:"media_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PublishNow bypasses the post store entirely: a direct, synchronous
// publish for "post it right now" requests. The structured result is
// returned as-is — there is no job state to consult afterwards.
func (h *PublishHandler) PublishNow(ctx *gin.Context) {
	var req publishNowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.publisher.Publish(ctx.Request.Context(), req.ImageURL, req.Caption)

	resp := publishNowResponse{
		Success:     result.Success(),
		ContainerID: result.ContainerID,
		MediaID:     result.MediaID,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	ctx.JSON(http.StatusOK, resp)
}

// RefreshToken triggers an unconditional credential refresh, bypassing the
// expiry check.
func (h *PublishHandler) RefreshToken(ctx *gin.Context) {
	err := h.tokens.ForceRefresh(ctx.Request.Context())
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, gin.H{"status": "refreshed"})
	case errors.Is(err, domain.ErrAppNotConfigured), errors.Is(err, domain.ErrTokenNotConfigured):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("force token refresh", "error", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
