package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/KB1RD/matrix-widget-api/internal/database"
	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// MySQLEventRepository implements RoomEvent persistence for MySQL.
type MySQLEventRepository struct {
	db *sql.DB
}

// Create inserts a room event. A nil state key is stored as NULL. Returns
// ErrConflict when the event ID already exists.
func (m *MySQLEventRepository) Create(ctx context.Context, event *domain.RoomEvent) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO room_events (id, room_id, sender, event_type, state_key, content, widget_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

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
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return apperrors.Wrap(apperrors.ErrConflict, "room event already exists")
		}
		return apperrors.Wrap(err, "failed to create room event")
	}

	return nil
}

// Get retrieves a room event by ID. Returns ErrEventNotFound if it does not exist.
func (m *MySQLEventRepository) Get(ctx context.Context, eventID string) (*domain.RoomEvent, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, room_id, sender, event_type, state_key, content, widget_id, created_at
			  FROM room_events WHERE id = ?`

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

// NewMySQLEventRepository creates a new MySQL RoomEvent repository.
func NewMySQLEventRepository(db *sql.DB) *MySQLEventRepository {
	return &MySQLEventRepository{db: db}
}
