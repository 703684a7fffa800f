package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/usecase"
)

type PostHandler struct {
	scheduler *usecase.Scheduler
	logger    *slog.Logger
}

func NewPostHandler(scheduler *usecase.Scheduler, logger *slog.Logger) *PostHandler {
	return &PostHandler{scheduler: scheduler, logger: logger.With("component", "post_handler")}
}

type createPostRequest struct {
	ImageURL    string    `json:"image_url"    binding:"required,url"`
	Caption     string    `json:"caption"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	OriginRef   *string   `json:"origin_ref"`
}

type postResponse struct {
	ID           string        `json:"id"`
	Status       domain.Status `json:"status"`
	ImageURL     string        `json:"image_url"`
	Caption      string        `json:"caption"`
	ScheduledAt  time.Time     `json:"scheduled_at"`
	CreatedAt    time.Time     `json:"created_at"`
	MediaID      *string       `json:"media_id,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
}

func toPostResponse(p *domain.Post) postResponse {
	return postResponse{
		ID:           p.ID,
		Status:       p.Status,
		ImageURL:     p.ImageURL,
		Caption:      p.Caption,
		ScheduledAt:  p.ScheduledAt,
		CreatedAt:    p.CreatedAt,
		MediaID:      p.MediaID,
		ErrorMessage: p.ErrorMessage,
	}
}

func (h *PostHandler) Create(ctx *gin.Context) {
	var req createPostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.scheduler.Schedule(ctx.Request.Context(), usecase.ScheduleInput{
		OwnerID:     ctx.GetString("ownerID"),
		ImageURL:    req.ImageURL,
		Caption:     req.Caption,
		ScheduledAt: req.ScheduledAt,
		OriginRef:   req.OriginRef,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePost) {
			ctx.JSON(http.StatusConflict, gin.H{"error": errDuplicatePost})
			return
		}
		h.logger.Error("schedule post", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, toPostResponse(post))
}

func (h *PostHandler) List(ctx *gin.Context) {
	status := domain.Status(ctx.Query("status"))

	posts, err := h.scheduler.PostsForOwner(ctx.Request.Context(), ctx.GetString("ownerID"), status)
	if err != nil {
		h.logger.Error("list posts", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	ctx.JSON(http.StatusOK, gin.H{"posts": out})
}

func (h *PostHandler) GetByID(ctx *gin.Context) {
	postID := ctx.Param("id")

	post, err := h.scheduler.GetPost(ctx.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errPostNotFound})
			return
		}
		h.logger.Error("get post", "post_id", postID, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	// Posts are only visible to their owner.
	if post.OwnerID != ctx.GetString("ownerID") {
		ctx.JSON(http.StatusNotFound, gin.H{"error": errPostNotFound})
		return
	}

	ctx.JSON(http.StatusOK, toPostResponse(post))
}

// Cancel is idempotent-safe: a missing, foreign or already-terminal post
// yields cancelled=false, never an error status.
func (h *PostHandler) Cancel(ctx *gin.Context) {
	postID := ctx.Param("id")

	cancelled, err := h.scheduler.Cancel(ctx.Request.Context(), postID, ctx.GetString("ownerID"))
	if err != nil {
		h.logger.Error("cancel post", "post_id", postID, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}
