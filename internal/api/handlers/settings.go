package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nichind/fastapi/internal/api/middleware"
	"github.com/nichind/fastapi/internal/models"
	"github.com/nichind/fastapi/internal/registry"
	"github.com/nichind/fastapi/internal/store"
)

// SettingsHandler serves runtime server settings (admin only).
type SettingsHandler struct {
	reg *registry.Registry
}

func NewSettingsHandler(reg *registry.Registry) *SettingsHandler {
	return &SettingsHandler{reg: reg}
}

func (h *SettingsHandler) List(c *gin.Context) {
	settings, err := h.reg.Settings.GetChunk(c.Request.Context(), -1, 0, store.Filter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) Get(c *gin.Context) {
	setting, err := h.reg.Settings.Get(c.Request.Context(),
		store.Filter{"key": c.Param("key")})
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Setting not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}
	c.JSON(http.StatusOK, setting)
}

type putSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// Put creates the setting or updates its value; value changes are audited.
func (h *SettingsHandler) Put(c *gin.Context) {
	key := c.Param("key")
	admin := middleware.CurrentUser(c)

	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}

	ctx := c.Request.Context()
	actor := store.WithActor(fmt.Sprintf("admin:%d", admin.ID))

	existing, err := h.reg.Settings.Get(ctx, store.Filter{"key": key})
	switch {
	case errors.Is(err, store.ErrNotFound):
		setting := models.ServerSetting{Key: key, Value: req.Value}
		if err := h.reg.Settings.Create(ctx, &setting, actor); err != nil {
			h.fail(c, err, key)
			return
		}
		c.JSON(http.StatusCreated, setting)

	case err != nil:
		h.fail(c, err, key)

	default:
		updated, err := h.reg.Settings.Update(ctx, existing.ID,
			models.SettingPatch{Value: models.Ptr(req.Value)}, actor)
		if err != nil {
			h.fail(c, err, key)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// Delete soft-deletes a setting; its audit history remains.
func (h *SettingsHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	admin := middleware.CurrentUser(c)

	ctx := c.Request.Context()
	setting, err := h.reg.Settings.Get(ctx, store.Filter{"key": key})
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Setting not found"})
		return
	}
	if err != nil {
		h.fail(c, err, key)
		return
	}

	if err := h.reg.Settings.Delete(ctx, setting.ID,
		store.WithActor(fmt.Sprintf("admin:%d", admin.ID))); err != nil {
		h.fail(c, err, key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"details": "Setting deleted"})
}

func (h *SettingsHandler) fail(c *gin.Context, err error, key string) {
	if isBlacklisted(err) {
		c.JSON(http.StatusBadRequest, gin.H{"details": []string{err.Error()}})
		return
	}
	slog.Error("setting write failed", "err", err, "key", key)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
}
