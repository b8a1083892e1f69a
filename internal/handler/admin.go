package handler

import (
	"net/http"

	"vesper/internal/service"
	"vesper/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService service.AdminService
	log          logger.Logger
}

func NewAdminHandler(adminService service.AdminService, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		log:          log,
	}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) Activity(c *gin.Context) {
	items, err := h.adminService.Activity(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, items)
}

func (h *AdminHandler) Stream(c *gin.Context) {
	events, err := h.adminService.Stream(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, events)
}
