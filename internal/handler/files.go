package handler

import (
	"mime"
	"net/http"
	"strings"

	"vesper/internal/service"
	"vesper/pkg/logger"

	"github.com/gin-gonic/gin"
)

type FileHandler struct {
	attachments service.AttachmentService
	log         logger.Logger
}

func NewFileHandler(attachments service.AttachmentService, log logger.Logger) *FileHandler {
	return &FileHandler{
		attachments: attachments,
		log:         log,
	}
}

// Download streams a stored attachment or avatar.
func (h *FileHandler) Download(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")

	body, info, err := h.attachments.Open(c.Request.Context(), name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer body.Close()

	headers := map[string]string{
		"Cache-Control":          "public, max-age=31536000, immutable",
		"X-Content-Type-Options": "nosniff",
	}
	if !service.InlineContentType(info.ContentType) {
		headers["Content-Disposition"] = mime.FormatMediaType("attachment", map[string]string{"filename": info.Name})
	}

	c.DataFromReader(http.StatusOK, int64(info.Size), info.ContentType, body, headers)
}
