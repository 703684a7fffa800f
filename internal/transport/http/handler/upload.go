package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Uploader stores an image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}

type UploadHandler struct {
	uploader Uploader
	logger   *slog.Logger
}

func NewUploadHandler(uploader Uploader, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, logger: logger.With("component", "upload_handler")}
}

// Upload accepts a multipart image and returns the public URL to use as a
// post's image_url.
func (h *UploadHandler) Upload(ctx *gin.Context) {
	if h.uploader == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": errUploadsDisabled})
		return
	}

	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open uploaded file", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	defer func() { _ = file.Close() }()

	url, err := h.uploader.Upload(ctx.Request.Context(),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		h.logger.Error("upload image", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"url": url})
}
