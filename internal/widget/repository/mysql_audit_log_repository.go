package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/database"
	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// MySQLAuditLogRepository implements AuditLog persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via database.GetTx().
type MySQLAuditLogRepository struct {
	db *sql.DB
}

// Create inserts a new AuditLog. Nil metadata is stored as NULL.
func (m *MySQLAuditLogRepository) Create(ctx context.Context, auditLog *domain.AuditLog) error {
	querier := database.GetTx(ctx, m.db)

	metadataJSON, err := marshalMetadata(auditLog.Metadata)
	if err != nil {
		return err
	}

	id, err := auditLog.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log id")
	}

	requestID, err := auditLog.RequestID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log request_id")
	}

	query := `INSERT INTO widget_audit_logs (id, request_id, widget_id, user_id, action, outcome, metadata, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		requestID,
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
func (m *MySQLAuditLogRepository) List(ctx context.Context, offset, limit int) ([]*domain.AuditLog, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, request_id, widget_id, user_id, action, outcome, metadata, created_at
			  FROM widget_audit_logs
			  ORDER BY id DESC
			  LIMIT ? OFFSET ?`

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
		var idBytes, requestIDBytes []byte
		var action string
		var metadataJSON []byte

		err := rows.Scan(
			&idBytes,
			&requestIDBytes,
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

		if err := auditLog.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log id")
		}
		if err := auditLog.RequestID.UnmarshalBinary(requestIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log request_id")
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
func (m *MySQLAuditLogRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM widget_audit_logs WHERE created_at < ?`
		if err := querier.QueryRowContext(ctx, query, olderThan).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count audit logs")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM widget_audit_logs WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit logs")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}

// NewMySQLAuditLogRepository creates a new MySQL AuditLog repository.
func NewMySQLAuditLogRepository(db *sql.DB) *MySQLAuditLogRepository {
	return &MySQLAuditLogRepository{db: db}
}
