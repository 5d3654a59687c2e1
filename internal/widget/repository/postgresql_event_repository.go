package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/KB1RD/matrix-widget-api/internal/database"
	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// pgUniqueViolation is the SQLSTATE of a duplicate key.
const pgUniqueViolation = "23505"

// PostgreSQLEventRepository implements RoomEvent persistence for PostgreSQL.
type PostgreSQLEventRepository struct {
	db *sql.DB
}

// Create inserts a room event. A nil state key is stored as NULL. Returns
// ErrConflict when the event ID already exists.
func (p *PostgreSQLEventRepository) Create(ctx context.Context, event *domain.RoomEvent) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO room_events (id, room_id, sender, event_type, state_key, content, widget_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		event.ID,
		event.RoomID,
		event.Sender,
		event.Type,
		nullStateKey(event.StateKey),
		contentValue(event.Content),
		event.WidgetID,
		event.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return apperrors.Wrap(apperrors.ErrConflict, "room event already exists")
		}
		return apperrors.Wrap(err, "failed to create room event")
	}

	return nil
}

// Get retrieves a room event by ID. Returns ErrEventNotFound if it does not exist.
func (p *PostgreSQLEventRepository) Get(ctx context.Context, eventID string) (*domain.RoomEvent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, room_id, sender, event_type, state_key, content, widget_id, created_at
			  FROM room_events WHERE id = $1`

	var event domain.RoomEvent
	var stateKey sql.NullString
	var content []byte

	err := querier.QueryRowContext(ctx, query, eventID).Scan(
		&event.ID,
		&event.RoomID,
		&event.Sender,
		&event.Type,
		&stateKey,
		&content,
		&event.WidgetID,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get room event")
	}

	event.StateKey = stateKeyFromNull(stateKey)
	event.Content = content

	return &event, nil
}

// NewPostgreSQLEventRepository creates a new PostgreSQL RoomEvent repository.
func NewPostgreSQLEventRepository(db *sql.DB) *PostgreSQLEventRepository {
	return &PostgreSQLEventRepository{db: db}
}
