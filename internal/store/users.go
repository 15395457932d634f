package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
)

func CreateUser(ctx context.Context, q database.Querier, username, name, passwordHash string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (username, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING username, name, password_hash`

	err := q.QueryRowContext(ctx, query, username, name, passwordHash).Scan(
		&user.Username,
		&user.Name,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q database.Querier, username string) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT username, name, password_hash
		FROM users
		WHERE username = $1`

	err := q.QueryRowContext(ctx, query, username).Scan(
		&user.Username,
		&user.Name,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
