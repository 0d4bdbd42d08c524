package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/searchlens/backend/internal/apierr"
	"github.com/searchlens/backend/internal/api/response"
	"github.com/searchlens/backend/internal/auth"
	"github.com/searchlens/backend/internal/credits"
	"github.com/searchlens/backend/internal/models"
	"github.com/searchlens/backend/internal/repository"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	userRepo   *repository.UserRepository
	jwtService *auth.JWTService
	ledger     *credits.Ledger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	userRepo *repository.UserRepository,
	jwtService *auth.JWTService,
	ledger *credits.Ledger,
) *AuthHandler {
	return &AuthHandler{
		userRepo:   userRepo,
		jwtService: jwtService,
		ledger:     ledger,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expires_in"`
	User      *UserResponse `json:"user"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Credits      int       `json:"credits"`
	GSCConnected bool      `json:"gsc_connected"`
	CreatedAt    time.Time `json:"created_at"`
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierr.Validation("invalid_request", "invalid request body"))
		return
	}

	if !isValidEmail(req.Email) {
		response.Error(w, apierr.Validation("invalid_email", "invalid email address"))
		return
	}

	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		response.Error(w, apierr.Validation("weak_password", err.Error()))
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("[auth] hash password error: %v", err)
		response.Error(w, err)
		return
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: passwordHash,
	}

	if err := h.userRepo.Create(r.Context(), user); err != nil {
		if err == repository.ErrUserExists {
			response.Error(w, apierr.Validation("user_exists", "an account with this email already exists"))
			return
		}
		log.Printf("[auth] create user error: %v", err)
		response.Error(w, err)
		return
	}

	// New accounts start with an initial credit grant.
	balance, err := h.ledger.Grant(r.Context(), user.ID, models.DefaultCreditGrant)
	if err != nil {
		log.Printf("[auth] initial credit grant failed for %s: %v", user.ID, err)
		balance = 0
	}
	user.Credits = balance

	token, err := h.jwtService.Generate(user)
	if err != nil {
		log.Printf("[auth] token generation error: %v", err)
		response.Error(w, err)
		return
	}

	response.Created(w, AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtService.Expiration().Seconds()),
		User:      userResponse(user),
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierr.Validation("invalid_request", "invalid request body"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.userRepo.GetByEmail(r.Context(), email)
	if err != nil {
		// Don't reveal whether the email exists
		response.Error(w, apierr.Auth("invalid_credentials", "invalid email or password"))
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		response.Error(w, apierr.Auth("invalid_credentials", "invalid email or password"))
		return
	}

	token, err := h.jwtService.Generate(user)
	if err != nil {
		log.Printf("[auth] token generation error: %v", err)
		response.Error(w, err)
		return
	}

	response.Success(w, AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtService.Expiration().Seconds()),
		User:      userResponse(user),
	})
}

// GetCurrentUser returns the current authenticated user
// GET /api/v1/user/me
func (h *AuthHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	response.Success(w, map[string]interface{}{
		"user": userResponse(user),
	})
}

func userResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Credits:      user.Credits,
		GSCConnected: user.GSCConnected,
		CreatedAt:    user.CreatedAt,
	}
}

// isValidEmail validates an email address format
func isValidEmail(email string) bool {
	// Simple email regex - not perfect but good enough for basic validation
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}
