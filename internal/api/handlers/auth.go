package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nichind/fastapi/internal/models"
	"github.com/nichind/fastapi/internal/registry"
	"github.com/nichind/fastapi/internal/secret"
	"github.com/nichind/fastapi/internal/store"
)

var emailRe = regexp.MustCompile(`[^@]+@[^@]+\.[^@]+`)

// AuthHandler owns registration and login.
type AuthHandler struct {
	reg         *registry.Registry
	jwtSecret   string
	tokenLength int
}

func NewAuthHandler(reg *registry.Registry, jwtSecret string, tokenLength int) *AuthHandler {
	return &AuthHandler{reg: reg, jwtSecret: jwtSecret, tokenLength: tokenLength}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account. Field-format problems are collected and
// returned together; uniqueness is left to the store's constraints.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"details": []string{"username and password are required"}})
		return
	}

	var problems []string
	if len(req.Username) < 3 {
		problems = append(problems, "Username must be at least 3 characters long")
	}
	if req.Email != "" && !emailRe.MatchString(req.Email) {
		problems = append(problems, "Invalid email address")
	}
	problems = append(problems, passwordProblems(req.Password)...)
	if len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"details": problems})
		return
	}

	token, err := secret.GenerateSecret(h.tokenLength)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	user := models.User{
		Username:  models.Ptr(req.Username),
		Password:  req.Password,
		Token:     token,
		TokenHash: models.Ptr(secret.Hash(token)),
	}
	if req.Email != "" {
		user.Email = models.Ptr(req.Email)
	}

	switch err := h.reg.Users.Create(c.Request.Context(), &user); {
	case err == nil:
	case isBlacklisted(err):
		c.JSON(http.StatusBadRequest, gin.H{"details": []string{err.Error()}})
		return
	case isDuplicate(err):
		c.JSON(http.StatusBadRequest, gin.H{"details": []string{"Username or email already in use"}})
		return
	default:
		slog.Error("register failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}

	slog.Info("user created", "user_id", user.ID, "ip", c.ClientIP())
	c.JSON(http.StatusCreated, gin.H{
		"details": "Account created",
		"user_id": user.ID,
		"token":   token,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies the password through the codec and issues a new session
// token plus, when configured, a short-lived JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Username == "" && req.Email == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username or email, and password are required"})
		return
	}

	ctx := c.Request.Context()
	filter := store.Filter{"username": req.Username}
	if req.Username == "" {
		filter = store.Filter{"email": req.Email}
	}

	user, err := h.reg.Users.Get(ctx, filter)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}

	ok, err := h.reg.Codec.Compare(req.Password, user.Password)
	if err != nil || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := secret.GenerateSecret(h.tokenLength)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	expires := time.Now().Add(30 * 24 * time.Hour)
	session := models.Session{
		UserID:    user.ID,
		Token:     token,
		TokenHash: secret.Hash(token),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		ExpiresAt: &expires,
	}
	if err := h.reg.Sessions.Create(ctx, &session); err != nil {
		slog.Error("session create failed", "err", err, "user_id", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred..."})
		return
	}

	resp := gin.H{
		"user_id":    user.ID,
		"token":      token,
		"expires_at": expires,
	}
	if h.jwtSecret != "" {
		signed, err := h.issueJWT(user)
		if err == nil {
			resp["jwt"] = signed
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) issueJWT(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   float64(user.ID),
		"admin": user.IsAdmin,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
}

func passwordProblems(password string) []string {
	var problems []string
	if len(password) < 8 {
		problems = append(problems, "Password must be at least 8 characters long")
	}
	if password == strings.ToLower(password) || password == strings.ToUpper(password) {
		problems = append(problems, "Password must contain at least one uppercase letter and one lowercase letter")
	}
	hasDigit := false
	for _, r := range password {
		if unicode.IsDigit(r) {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		problems = append(problems, "Password must contain at least one number")
	}
	return problems
}

func isBlacklisted(err error) bool {
	var be *store.BlacklistedError
	return errors.As(err, &be)
}

func isDuplicate(err error) bool {
	var de *store.DuplicateError
	return errors.As(err, &de)
}
