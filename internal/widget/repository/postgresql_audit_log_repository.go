package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/database"
	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// PostgreSQLAuditLogRepository implements AuditLog persistence for PostgreSQL.
// Uses native UUID types with transaction support via database.GetTx().
type PostgreSQLAuditLogRepository struct {
	db *sql.DB
}

// Create inserts a new AuditLog. Nil metadata is stored as NULL.
func (p *PostgreSQLAuditLogRepository) Create(ctx context.Context, auditLog *domain.AuditLog) error {
	querier := database.GetTx(ctx, p.db)

	metadataJSON, err := marshalMetadata(auditLog.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO widget_audit_logs (id, request_id, widget_id, user_id, action, outcome, metadata, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = querier.ExecContext(
		ctx,
		query,
		auditLog.ID,
		auditLog.RequestID,
		auditLog.WidgetID,
		auditLog.UserID,
		string(auditLog.Action),
		auditLog.Outcome,
		metadataJSON,
		auditLog.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}

	return nil
}

// List retrieves audit logs ordered by ID descending (newest first) with pagination.
// Returns an empty slice if there are none.
func (p *PostgreSQLAuditLogRepository) List(ctx context.Context, offset, limit int) ([]*domain.AuditLog, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, request_id, widget_id, user_id, action, outcome, metadata, created_at
			  FROM widget_audit_logs
			  ORDER BY id DESC
			  LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	auditLogs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		var auditLog domain.AuditLog
		var action string
		var metadataJSON []byte

		err := rows.Scan(
			&auditLog.ID,
			&auditLog.RequestID,
			&auditLog.WidgetID,
			&auditLog.UserID,
			&action,
			&auditLog.Outcome,
			&metadataJSON,
			&auditLog.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit log")
		}

		auditLog.Action = domain.AuditAction(action)
		if auditLog.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
			return nil, err
		}

		auditLogs = append(auditLogs, &auditLog)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit logs")
	}

	return auditLogs, nil
}

// DeleteOlderThan removes audit logs created before olderThan. With dryRun it
// only counts them.
func (p *PostgreSQLAuditLogRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM widget_audit_logs WHERE created_at < $1`
		if err := querier.QueryRowContext(ctx, query, olderThan).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count audit logs")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM widget_audit_logs WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit logs")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit log metadata")
	}
	return metadataJSON, nil
}

func unmarshalMetadata(metadataJSON []byte) (map[string]any, error) {
	if metadataJSON == nil {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal audit log metadata")
	}
	return metadata, nil
}

// NewPostgreSQLAuditLogRepository creates a new PostgreSQL AuditLog repository.
func NewPostgreSQLAuditLogRepository(db *sql.DB) *PostgreSQLAuditLogRepository {
	return &PostgreSQLAuditLogRepository{db: db}
}
