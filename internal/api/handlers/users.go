package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nichind/fastapi/internal/api/middleware"
	"github.com/nichind/fastapi/internal/models"
	"github.com/nichind/fastapi/internal/registry"
	"github.com/nichind/fastapi/internal/store"
)

// UserHandler serves the authenticated account surface.
type UserHandler struct {
	reg *registry.Registry
}

func NewUserHandler(reg *registry.Registry) *UserHandler {
	return &UserHandler{reg: reg}
}

// Me returns the caller's own record.
func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

type updateMeRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// UpdateMe applies a partial update to the caller's record. Every changed
// field is validated, encrypted when sensitive, and audited by the store.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var problems []string
	if req.Username != nil && len(*req.Username) < 3 {
		problems = append(problems, "Username must be at least 3 characters long")
	}
	if req.Email != nil && !emailRe.MatchString(*req.Email) {
		problems = append(problems, "Invalid email address")
	}
	if req.Password != nil {
		problems = append(problems, passwordProblems(*req.Password)...)
	}
	if len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"details": problems})
		return
	}

	patch := models.UserPatch{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	updated, err := h.reg.Users.Update(c.Request.Context(), user.ID, patch,
		store.WithActor(fmt.Sprintf("user:%d", user.ID)))
	switch {
	case err == nil:
	case isBlacklisted(err):
		c.JSON(http.StatusBadRequest, gin.H{"details": []string{err.Error()}})
		return
	case isDuplicate(err):
		c.JSON(http.StatusBadRequest, gin.H{"details": []string{"Username or email already in use"}})
		return
	case errors.Is(err, store.ErrStaleRecord):
		c.JSON(http.StatusConflict, gin.H{"error": "Record changed concurrently, retry"})
		return
	default:
		slog.Error("user update failed", "err", err, "user_id", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// MyAudit returns the caller's change history grouped by field.
func (h *UserHandler) MyAudit(c *gin.Context) {
	user := middleware.CurrentUser(c)

	history, err := h.reg.Users.Audit(c.Request.Context(), *user)
	if err != nil {
		slog.Error("audit query failed", "err", err, "user_id", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": history})
}

// MySessions lists the caller's sessions.
func (h *UserHandler) MySessions(c *gin.Context) {
	user := middleware.CurrentUser(c)

	sessions, err := h.reg.Sessions.GetChunk(c.Request.Context(), -1, 0,
		store.Filter{"user_id": user.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetUser returns any user by id (admin only).
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.reg.Users.GetByID(c.Request.Context(), uint(id))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListUsers returns a page of users (admin only).
// Query Params: page (default 1), limit (default 50)
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	users, err := h.reg.Users.GetChunk(c.Request.Context(), limit, offset, store.Filter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": users,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
		},
	})
}
