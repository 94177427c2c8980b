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

const adjustmentColumns = `id, group_id, deal_id, deal_short_id, mid, partner_id, partner_name,
	old_split, new_split, base_amount, delta, kind, note, status, reason, created_at, resolved_at`

// CreateAdjustments persists adjustment records in one transaction.
func (s *SQLiteStore) CreateAdjustments(ctx context.Context, adjustments []*models.Adjustment) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertAdjustments(ctx, tx, adjustments); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReplacePendingGroup swaps a group's pending records for replacements.
func (s *SQLiteStore) ReplacePendingGroup(ctx context.Context, groupID string, replacements []*models.Adjustment) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var resolved int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM adjustments WHERE group_id = ? AND status != ?",
		groupID, models.AdjustmentPending,
	).Scan(&resolved); err != nil {
		return fmt.Errorf("failed to check adjustment group: %w", err)
	}
	if resolved > 0 {
		return fmt.Errorf("%w: adjustment group %s has %d resolved records", storage.ErrConflict, groupID, resolved)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM adjustments WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to delete pending adjustments: %w", err)
	}
	for _, a := range replacements {
		a.GroupID = groupID
	}
	if err := insertAdjustments(ctx, tx, replacements); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertAdjustments(ctx context.Context, tx querier, adjustments []*models.Adjustment) error {
	now := time.Now().Unix()
	for _, a := range adjustments {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.CreatedAt == 0 {
			a.CreatedAt = now
		}
		if a.Status == "" {
			a.Status = models.AdjustmentPending
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO adjustments ("+adjustmentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			a.ID, a.GroupID, a.DealID, a.DealShortID, a.MID, a.PartnerID, a.PartnerName,
			a.OldSplit.String(), a.NewSplit.String(), a.BaseAmount.String(), a.Delta.String(), a.Kind,
			a.Note, a.Status, a.Reason, a.CreatedAt, a.ResolvedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert adjustment: %w", err)
		}
	}
	return nil
}

// GetAdjustment retrieves an adjustment by ID.
func (s *SQLiteStore) GetAdjustment(ctx context.Context, adjustmentID string) (*models.Adjustment, error) {
	a, err := scanAdjustment(s.q.QueryRowContext(ctx,
		"SELECT "+adjustmentColumns+" FROM adjustments WHERE id = ?", adjustmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("adjustment %w: %s", storage.ErrNotFound, adjustmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get adjustment: %w", err)
	}
	return a, nil
}

// ListAdjustments returns adjustments matching filter, newest first.
func (s *SQLiteStore) ListAdjustments(ctx context.Context, filter storage.AdjustmentFilter) ([]*models.Adjustment, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.in("id", filter.IDs)
	}
	if filter.DealID != "" {
		w.add("deal_id = ?", filter.DealID)
	}
	if filter.GroupID != "" {
		w.add("group_id = ?", filter.GroupID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	args := append(w.args, s.clampLimit(filter.Limit), filter.Offset)
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+adjustmentColumns+" FROM adjustments"+w.String()+
			" ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	defer rows.Close()

	var out []*models.Adjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adjustments: %w", err)
	}
	return out, nil
}

// ResolveAdjustment moves a pending adjustment to a terminal status.
func (s *SQLiteStore) ResolveAdjustment(ctx context.Context, adjustmentID string, status models.AdjustmentStatus, reason string, at int64) error {
	n, err := execCount(ctx, s.q, "resolve adjustment",
		"UPDATE adjustments SET status = ?, reason = ?, resolved_at = ? WHERE id = ? AND status = ?",
		status, reason, at, adjustmentID, models.AdjustmentPending)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Distinguish a missing record from one already resolved
	if _, err := s.GetAdjustment(ctx, adjustmentID); err != nil {
		return err
	}
	return fmt.Errorf("%w: adjustment %s is not pending", storage.ErrConflict, adjustmentID)
}

func scanAdjustment(row rowScanner) (*models.Adjustment, error) {
	a := &models.Adjustment{}
	err := row.Scan(&a.ID, &a.GroupID, &a.DealID, &a.DealShortID, &a.MID, &a.PartnerID, &a.PartnerName,
		&a.OldSplit, &a.NewSplit, &a.BaseAmount, &a.Delta, &a.Kind, &a.Note, &a.Status, &a.Reason,
		&a.CreatedAt, &a.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}
