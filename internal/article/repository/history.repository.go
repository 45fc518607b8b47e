package repository

import (
	"articlehub/internal/article/model"
	"articlehub/pkg/logger"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrHistoryNotFound  = errors.New("history not found")
	ErrDuplicateHistory = errors.New("history already recorded")
)

type HistoryRepository struct {
	DB *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{DB: db}
}

func (r *HistoryRepository) Count(ctx context.Context, typ model.HistoryType, entityUUID, ip string) (int, error) {
	var count int
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM histories WHERE type = $1 AND entity_uuid = $2 AND ip = $3",
		typ, entityUUID, ip,
	).Scan(&count)
	if err != nil {
		logger.Sugar.Errorf("Failed to count %s histories of %s: %v", typ, entityUUID, err)
		return 0, fmt.Errorf("count histories: %w", err)
	}
	return count, nil
}

// FindLatest returns the most recent matching history.
func (r *HistoryRepository) FindLatest(ctx context.Context, typ model.HistoryType, entityUUID, ip string) (*model.History, error) {
	var h model.History
	var userUUID sql.NullString
	err := conn(ctx, r.DB).QueryRowContext(ctx, `
		SELECT uuid, create_time, type, entity_uuid, entity_name, ip, user_uuid FROM histories
		WHERE type = $1 AND entity_uuid = $2 AND ip = $3
		ORDER BY create_time DESC LIMIT 1`,
		typ, entityUUID, ip,
	).Scan(&h.UUID, &h.CreateTime, &h.Type, &h.EntityUUID, &h.EntityName, &h.IP, &userUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to find %s history of %s: %v", typ, entityUUID, err)
		return nil, fmt.Errorf("find history: %w", err)
	}
	if userUUID.Valid {
		h.UserUUID = model.StringPtr(userUUID.String)
	}
	return &h, nil
}

func (r *HistoryRepository) Create(ctx context.Context, h *model.History) error {
	err := conn(ctx, r.DB).QueryRowContext(ctx, `
		INSERT INTO histories (uuid, type, entity_uuid, entity_name, ip, user_uuid, create_time)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING create_time`,
		h.UUID, h.Type, h.EntityUUID, h.EntityName, h.IP, nullable(h.UserUUID),
	).Scan(&h.CreateTime)
	if isUniqueViolation(err, "") {
		return ErrDuplicateHistory
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to create %s history for %s: %v", h.Type, h.EntityUUID, err)
		return fmt.Errorf("create history: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Delete(ctx context.Context, uuid string) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx, "DELETE FROM histories WHERE uuid = $1", uuid)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete history %s: %v", uuid, err)
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// DeleteByEntity drops every history of an entity that no longer exists.
func (r *HistoryRepository) DeleteByEntity(ctx context.Context, entityUUID string) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx, "DELETE FROM histories WHERE entity_uuid = $1", entityUUID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete histories of %s: %v", entityUUID, err)
		return fmt.Errorf("delete histories: %w", err)
	}
	return nil
}
