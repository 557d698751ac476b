package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AccountRepo struct {
	DB querier
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register creates a staff account.
func (r *AccountRepo) Register(ctx context.Context, username, email, password string) (*Account, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	a := Account{Username: normalize(username), Email: normalize(email), PasswordHash: hash, Role: RoleStaff}
	err = r.DB.QueryRow(ctx, `
INSERT INTO accounts (username, email, password_hash, role, created_at)
VALUES ($1, $2, $3, $4, now())
RETURNING id, created_at`, a.Username, a.Email, a.PasswordHash, a.Role).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Login(ctx context.Context, username, password string) (*Account, error) {
	var a Account
	err := r.DB.QueryRow(ctx, `
SELECT id, username, email, password_hash, role, created_at
FROM accounts WHERE username = $1`, normalize(username)).
		Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(password, a.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &a, nil
}
