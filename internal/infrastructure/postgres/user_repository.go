package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Tovborg/TovborgFinance/internal/domain/user"
)

// UserRepository implements the user.Repository interface for PostgreSQL
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, name, google_id, password_hash, avatar_url, created_at, updated_at`

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, params user.CreateUserParams) (*user.User, error) {
	query := `
		INSERT INTO users (email, name, google_id, password_hash, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, query,
		params.Email, params.Name, params.GoogleID, params.PasswordHash, params.AvatarURL,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetByGoogleID retrieves a user by the identity provider's subject
func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, googleID))
	if err == sql.ErrNoRows {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by google id: %w", err)
	}
	return u, nil
}

// Delete removes a user; storage cascades down to requisitions, accounts
// and transactions.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var googleID, passwordHash, avatarURL sql.NullString

	err := row.Scan(&u.ID, &u.Email, &u.Name, &googleID, &passwordHash, &avatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if googleID.Valid {
		u.GoogleID = &googleID.String
	}
	if passwordHash.Valid {
		u.PasswordHash = &passwordHash.String
	}
	if avatarURL.Valid {
		u.AvatarURL = &avatarURL.String
	}

	return &u, nil
}
