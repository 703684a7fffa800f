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

type SessionHandler struct {
	sessions *usecase.SessionUsecase
	logger   *slog.Logger
}

func NewSessionHandler(sessions *usecase.SessionUsecase, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger.With("component", "session_handler")}
}

type updateSessionRequest struct {
	Date   *string `json:"date"` // YYYY-MM-DD
	Hour   *int    `json:"hour"   binding:"omitempty,min=0,max=23"`
	Minute *int    `json:"minute" binding:"omitempty,min=0,max=59"`
}

// Update merges date/time selections into the owner's draft session.
func (h *SessionHandler) Update(ctx *gin.Context) {
	var req updateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := usecase.SessionUpdate{Hour: req.Hour, Minute: req.Minute}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		update.Date = &date
	}

	sess, err := h.sessions.Update(ctx.Request.Context(), ctx.GetString("ownerID"), update)
	if err != nil {
		h.logger.Error("update session", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) Get(ctx *gin.Context) {
	sess, err := h.sessions.Get(ctx.Request.Context(), ctx.GetString("ownerID"))
	if err != nil {
		h.logger.Error("get session", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	if sess == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "No active session"})
		return
	}
	ctx.JSON(http.StatusOK, sess)
}

type confirmSessionRequest struct {
	ImageURL  string  `json:"image_url" binding:"required,url"`
	Caption   string  `json:"caption"`
	OriginRef *string `json:"origin_ref"`
}

// Confirm converts the completed session into exactly one scheduled post
// and clears the session.
func (h *SessionHandler) Confirm(ctx *gin.Context) {
	var req confirmSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.sessions.Confirm(ctx.Request.Context(),
		ctx.GetString("ownerID"), req.ImageURL, req.Caption, req.OriginRef)
	if err != nil {
		if errors.Is(err, domain.ErrSessionIncomplete) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errSessionIncomplete})
			return
		}
		h.logger.Error("confirm session", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, toPostResponse(post))
}

func (h *SessionHandler) Delete(ctx *gin.Context) {
	if err := h.sessions.Clear(ctx.Request.Context(), ctx.GetString("ownerID")); err != nil {
		h.logger.Error("clear session", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.Status(http.StatusNoContent)
}
