package replay

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/haven-app/haven/internal/event"
)

// Reader loads exported interaction-event logs (one JSON object per
// line) for offline replay through the engine.
type Reader struct {
	db *sql.DB
}

func NewReader() (*Reader, error) {
	database, err := GetDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	return &Reader{db: database}, nil
}

// ReadEvents returns the events in the log at path, ordered by timestamp.
// Rows with an unknown event type or unparseable timestamp are skipped;
// a replay tool should surface as much of a session as it can.
func (r *Reader) ReadEvents(path string) ([]event.InteractionEvent, error) {
	query := fmt.Sprintf(`
		SELECT
			type,
			CAST(timestamp AS VARCHAR) as ts,
			COALESCE(page, '') as page,
			COALESCE(field, '') as field,
			COALESCE(CAST(value AS VARCHAR), '') as value
		FROM read_json('%s',
			format = 'newline_delimited',
			union_by_name = true,
			ignore_errors = true
		)
		WHERE type IS NOT NULL
		ORDER BY timestamp ASC
	`, path)

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []event.InteractionEvent
	for rows.Next() {
		var (
			evType    string
			timestamp string
			page      string
			field     string
			value     string
		)
		if err := rows.Scan(&evType, &timestamp, &page, &field, &value); err != nil {
			continue
		}

		ts, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			continue
		}
		ev := event.InteractionEvent{
			Type:      event.Type(evType),
			Timestamp: ts,
			Page:      page,
			Field:     field,
			Value:     value,
		}
		if !ev.Type.IsValid() {
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}

// Stats reports how many events the log holds and its time range.
func (r *Reader) Stats(path string) (int, time.Time, time.Time, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) as count,
			MIN(timestamp) as first,
			MAX(timestamp) as last
		FROM read_json('%s',
			format = 'newline_delimited',
			union_by_name = true,
			ignore_errors = true
		)
		WHERE type IS NOT NULL
	`, path)

	var count int
	var firstStr, lastStr sql.NullString

	err := r.db.QueryRow(query).Scan(&count, &firstStr, &lastStr)
	if err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("failed to get stats: %w", err)
	}

	var first, last time.Time
	if firstStr.Valid {
		first, _ = time.Parse(time.RFC3339, firstStr.String)
	}
	if lastStr.Valid {
		last, _ = time.Parse(time.RFC3339, lastStr.String)
	}
	return count, first, last, nil
}
