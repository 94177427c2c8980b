package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
)

const eventColumns = "id, deal_id, mid, merchant_name, month, category, net_residual, created_at"

// CreateEvents persists source events in one transaction.
func (s *SQLiteStore) CreateEvents(ctx context.Context, events []*models.Event) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.CreatedAt == 0 {
			ev.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			ev.ID, nullable(ev.DealID), ev.MID, ev.MerchantName, ev.Month, ev.Category,
			ev.NetResidual.String(), ev.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID.
func (s *SQLiteStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	ev, err := scanEvent(s.q.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %w: %s", storage.ErrNotFound, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, nil
}

// ListEventsByDeal retrieves all events linked to a deal.
func (s *SQLiteStore) ListEventsByDeal(ctx context.Context, dealID string) ([]*models.Event, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE deal_id = ? ORDER BY month, id", dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// AssignEvents links unassigned events to a deal. It fails with ErrNotFound
// unless every listed event exists and is still unassigned.
func (s *SQLiteStore) AssignEvents(ctx context.Context, eventIDs []string, dealID, mid string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	ph, args := inClause(eventIDs)
	n, err := execCount(ctx, s.q, "assign events",
		"UPDATE events SET deal_id = ?, mid = ? WHERE deal_id IS NULL AND id IN ("+ph+")",
		append([]any{dealID, mid}, args...)...)
	if err != nil {
		return err
	}
	if n != len(eventIDs) {
		return fmt.Errorf("event %w: %d of %d events exist unassigned", storage.ErrNotFound, n, len(eventIDs))
	}
	return nil
}

// UpdateEventsMID stamps a new MID on every event of a deal.
func (s *SQLiteStore) UpdateEventsMID(ctx context.Context, dealID, mid string) (int, error) {
	return execCount(ctx, s.q, "update event MIDs",
		"UPDATE events SET mid = ? WHERE deal_id = ?", mid, dealID)
}

// DeleteEventsByDeal removes every event of a deal.
func (s *SQLiteStore) DeleteEventsByDeal(ctx context.Context, dealID string) (int, error) {
	return execCount(ctx, s.q, "delete events", "DELETE FROM events WHERE deal_id = ?", dealID)
}

func scanEvent(row rowScanner) (*models.Event, error) {
	ev := &models.Event{}
	var dealID sql.NullString
	if err := row.Scan(&ev.ID, &dealID, &ev.MID, &ev.MerchantName, &ev.Month, &ev.Category,
		&ev.NetResidual, &ev.CreatedAt); err != nil {
		return nil, err
	}
	if dealID.Valid {
		ev.DealID = dealID.String
	}
	return ev, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
