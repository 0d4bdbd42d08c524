package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/searchlens/backend/internal/database"
	"github.com/searchlens/backend/internal/models"
)

var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when trying to create a user that already exists
	ErrUserExists = errors.New("user already exists")
	// ErrInsufficientCredits is returned when a debit would drive the balance negative
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// UserRepository handles user database operations
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, password_hash, credits, gsc_connected, gsc_refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Credits,
		user.GSCConnected, user.GSCRefreshToken, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		// Check for unique constraint violation
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, credits, gsc_connected, gsc_refresh_token, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Credits,
		&user.GSCConnected, &user.GSCRefreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, credits, gsc_connected, gsc_refresh_token, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Credits,
		&user.GSCConnected, &user.GSCRefreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// GetRefreshToken returns the stored Search Console refresh token for a user.
// An empty string means the user has never connected or has been disconnected.
func (r *UserRepository) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	query := `SELECT gsc_refresh_token FROM users WHERE id = $1`

	var token string
	err := r.db.QueryRow(ctx, query, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}

	return token, nil
}

// SetRefreshToken stores a new refresh token and marks the user connected.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID string, token string) error {
	query := `
		UPDATE users
		SET gsc_refresh_token = $2, gsc_connected = true, updated_at = $3
		WHERE id = $1
	`
	rowsAffected, err := r.db.Exec(ctx, query, userID, token, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetConnected updates the Search Console connection flag. Disconnecting also
// clears the stored refresh token.
func (r *UserRepository) SetConnected(ctx context.Context, userID string, connected bool) error {
	var query string
	if connected {
		query = `UPDATE users SET gsc_connected = true, updated_at = $2 WHERE id = $1`
	} else {
		query = `UPDATE users SET gsc_connected = false, gsc_refresh_token = '', updated_at = $2 WHERE id = $1`
	}

	rowsAffected, err := r.db.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update connection flag: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// GetBalance returns the current credit balance for a user.
func (r *UserRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	query := `SELECT credits FROM users WHERE id = $1`

	var balance int
	err := r.db.QueryRow(ctx, query, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// DebitCredits atomically decrements a user's balance with a floor at zero.
// The conditional update guarantees two racing debits cannot both succeed on
// the last credit. Returns the remaining balance.
func (r *UserRepository) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	query := `
		UPDATE users
		SET credits = credits - $2, updated_at = $3
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`
	var remaining int
	err := r.db.QueryRow(ctx, query, userID, amount, time.Now()).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the user is missing or the balance is too low.
			if _, getErr := r.GetByID(ctx, userID); getErr != nil {
				return 0, getErr
			}
			return 0, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("failed to debit credits: %w", err)
	}

	return remaining, nil
}

// GrantCredits adds credits to a user's balance. Used at account creation.
func (r *UserRepository) GrantCredits(ctx context.Context, userID string, amount int) (int, error) {
	query := `
		UPDATE users
		SET credits = credits + $2, updated_at = $3
		WHERE id = $1
		RETURNING credits
	`
	var balance int
	err := r.db.QueryRow(ctx, query, userID, amount, time.Now()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to grant credits: %w", err)
	}

	return balance, nil
}

// AppendCreditLog appends an immutable ledger row for a completed paid operation.
func (r *UserRepository) AppendCreditLog(ctx context.Context, entry *models.CreditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO credit_logs (user_id, amount, purpose, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, entry.UserID, entry.Amount, entry.Purpose, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append credit log: %w", err)
	}

	return nil
}

// ListCreditLogs returns the most recent ledger rows for a user.
func (r *UserRepository) ListCreditLogs(ctx context.Context, userID string, limit int) ([]models.CreditLog, error) {
	query := `
		SELECT id, user_id, amount, purpose, created_at
		FROM credit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.CreditLog, 0, limit)
	for rows.Next() {
		var entry models.CreditLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Amount, &entry.Purpose, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit log: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credit logs: %w", err)
	}

	return logs, nil
}

// isUniqueViolation checks if an error is a unique constraint violation
func isUniqueViolation(err error) bool {
	// PostgreSQL unique violation error code is 23505
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "23505")
}
