package handler

import (
	"net/http"
	"strconv"

	"vesper/internal/middleware"
	"vesper/internal/service"
	"vesper/pkg/logger"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService    service.UserService
	maxUploadBytes int64
	log            logger.Logger
}

func NewUserHandler(userService service.UserService, maxUploadBytes int64, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService:    userService,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Search(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	users, err := h.userService.Search(c.Request.Context(), c.Query("q"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || targetID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	file, ok := formFile(c, "avatar", h.maxUploadBytes)
	if !ok {
		return
	}
	src, err := file.Open()
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer src.Close()

	avatarURL, err := h.userService.UpdateAvatar(c.Request.Context(), service.UpdateAvatarInput{
		ActorID:   userID,
		ActorRole: middleware.UserRole(c),
		TargetID:  targetID,
		Filename:  file.Filename,
		Data:      src,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": avatarURL})
}
