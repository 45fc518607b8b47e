package repository

import (
	"articlehub/pkg/logger"
	"context"
	"database/sql"
	"fmt"
)

// ReportRepository is the narrow slice of the report subsystem articles need.
type ReportRepository struct {
	DB *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{DB: db}
}

// SoftDeleteByEntity marks every open report against entityUUID as handled.
func (r *ReportRepository) SoftDeleteByEntity(ctx context.Context, entityUUID string) (int64, error) {
	result, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE reports SET handled = TRUE, deleted = TRUE WHERE entity_uuid = $1 AND deleted = FALSE", entityUUID)
	if err != nil {
		logger.Sugar.Errorf("Failed to soft delete reports of %s: %v", entityUUID, err)
		return 0, fmt.Errorf("soft delete reports: %w", err)
	}
	return result.RowsAffected()
}
