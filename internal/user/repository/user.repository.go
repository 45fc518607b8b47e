package repository

import (
	"articlehub/internal/user/model"
	"articlehub/pkg/logger"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads users provisioned by the authentication service.
type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) FindByUUID(ctx context.Context, uuid string) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT uuid, username, avatar_url, role FROM users WHERE uuid = $1", uuid,
	).Scan(&u.UUID, &u.Username, &u.AvatarURL, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get user %s: %v", uuid, err)
		return nil, fmt.Errorf("find user %s: %w", uuid, err)
	}
	return &u, nil
}
