package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/transport/http/handler"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/transport/http/middleware"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(
	logger *slog.Logger,
	postHandler *handler.PostHandler,
	sessionHandler *handler.SessionHandler,
	publishHandler *handler.PublishHandler,
	uploadHandler *handler.UploadHandler,
	hmacKey []byte,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(hmacKey)

	posts := r.Group("/posts", authMW)
	posts.POST("", postHandler.Create)
	posts.GET("", postHandler.List)
	posts.GET("/:id", postHandler.GetByID)
	posts.DELETE("/:id", postHandler.Cancel)

	session := r.Group("/session", authMW)
	session.PUT("", sessionHandler.Update)
	session.GET("", sessionHandler.Get)
	session.POST("/confirm", sessionHandler.Confirm)
	session.DELETE("", sessionHandler.Delete)

	r.POST("/publish", authMW, publishHandler.PublishNow)
	r.POST("/uploads", authMW, uploadHandler.Upload)
	r.POST("/token/refresh", authMW, publishHandler.RefreshToken)

	return r
}
