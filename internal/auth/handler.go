package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
	"github.com/alfares/bakery-backend/pkg/middleware"
	"github.com/alfares/bakery-backend/pkg/response"
)

type Handler struct {
	db           *gorm.DB
	googleConfig *oauth2.Config
}

func NewHandler(db *gorm.DB) *Handler {
	googleConfig := &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}

	return &Handler{
		db:           db,
		googleConfig: googleConfig,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Login authenticates by username and password. Usernames are
// case-insensitive; disabled accounts are rejected.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	var user database.User
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if err := h.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.Validation("invalid username or password"))
			return
		}
		response.Error(c, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		response.Error(c, apperr.Validation("invalid username or password"))
		return
	}
	if user.Status != "active" {
		response.Error(c, apperr.Validation("account is disabled"))
		return
	}

	tokens, err := generateTokens(user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"tokens": tokens, "user": sanitize(user)})
}

// Refresh exchanges a refresh token for a new token pair
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	token, err := jwt.Parse(req.RefreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return middleware.JWTSecret(), nil
	})
	if err != nil || !token.Valid {
		response.Error(c, apperr.Validation("invalid refresh token"))
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["type"] != "refresh" {
		response.Error(c, apperr.Validation("invalid refresh token"))
		return
	}

	var user database.User
	if err := h.db.Where("id = ?", claims["user_id"]).First(&user).Error; err != nil {
		response.Error(c, apperr.Validation("invalid refresh token"))
		return
	}
	if user.Status != "active" {
		response.Error(c, apperr.Validation("account is disabled"))
		return
	}

	tokens, err := generateTokens(user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"tokens": tokens})
}

// GetMe returns the authenticated user's profile
func (h *Handler) GetMe(c *gin.Context) {
	var user database.User
	if err := h.db.Where("id = ?", c.GetString("user_id")).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("user not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"user": sanitize(user)})
}

// GoogleLogin redirects the browser to Google's consent page
func (h *Handler) GoogleLogin(c *gin.Context) {
	url := h.googleConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback signs in an already-provisioned user by the email
// attached to their Google account. Unknown emails are rejected; there
// is no self-service signup.
func (h *Handler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.Error(c, apperr.Validation("missing authorization code"))
		return
	}

	token, err := h.googleConfig.Exchange(context.Background(), code)
	if err != nil {
		response.Error(c, apperr.Validation("failed to exchange authorization code"))
		return
	}

	info, err := fetchGoogleUserInfo(token.AccessToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	var user database.User
	if err := h.db.Where("email = ?", info.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.Validation("no account is registered for %s", info.Email))
			return
		}
		response.Error(c, err)
		return
	}
	if user.Status != "active" {
		response.Error(c, apperr.Validation("account is disabled"))
		return
	}

	tokens, err := generateTokens(user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"tokens": tokens, "user": sanitize(user)})
}

type googleUserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func fetchGoogleUserInfo(accessToken string) (*googleUserInfo, error) {
	resp, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + accessToken)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, apperr.Validation("google account has no email")
	}
	return &info, nil
}

func generateTokens(user database.User) (*TokenPair, error) {
	var accesses []string
	if user.Accesses != "" {
		_ = json.Unmarshal([]byte(user.Accesses), &accesses)
	}

	now := time.Now()
	accessTTL := 24 * time.Hour

	accessClaims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"role":     user.Role,
		"accesses": accesses,
		"iat":      now.Unix(),
		"exp":      now.Add(accessTTL).Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(middleware.JWTSecret())
	if err != nil {
		return nil, err
	}

	refreshClaims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"type":    "refresh",
		"iat":     now.Unix(),
		"exp":     now.Add(7 * 24 * time.Hour).Unix(),
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(middleware.JWTSecret())
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, nil
}

func sanitize(user database.User) gin.H {
	var accesses, branches []string
	if user.Accesses != "" {
		_ = json.Unmarshal([]byte(user.Accesses), &accesses)
	}
	if user.AssignedBranches != "" {
		_ = json.Unmarshal([]byte(user.AssignedBranches), &branches)
	}
	return gin.H{
		"id":               user.ID,
		"username":         user.Username,
		"fullName":         user.FullName,
		"email":            user.Email,
		"role":             user.Role,
		"accesses":         accesses,
		"assignedBranches": branches,
		"status":           user.Status,
	}
}
