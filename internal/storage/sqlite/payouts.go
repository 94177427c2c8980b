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

const payoutColumns = `id, deal_short_id, event_id, mid, merchant_name, month, category,
	partner_id, partner_name, role, split, amount, base_amount, status, paid, paid_at,
	ledger_record_id, created_at, updated_at`

// CreatePayouts persists payout rows in one transaction.
func (s *SQLiteStore) CreatePayouts(ctx context.Context, payouts []*models.Payout) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, p := range payouts {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt == 0 {
			p.CreatedAt = now
		}
		if p.Status == "" {
			p.Status = models.AssignmentPending
		}
		p.UpdatedAt = now
		_, err := tx.ExecContext(ctx,
			"INSERT INTO payouts ("+payoutColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			p.ID, p.DealShortID, p.EventID, p.MID, p.MerchantName, p.Month, p.Category,
			p.PartnerID, p.PartnerName, p.Role, p.Split.String(), p.Amount.String(), p.BaseAmount.String(),
			p.Status, p.Paid, p.PaidAt, p.LedgerRecordID, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payout: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPayout retrieves a payout by ID.
func (s *SQLiteStore) GetPayout(ctx context.Context, payoutID string) (*models.Payout, error) {
	p, err := scanPayout(s.q.QueryRowContext(ctx, "SELECT "+payoutColumns+" FROM payouts WHERE id = ?", payoutID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payout %w: %s", storage.ErrNotFound, payoutID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

// ListPayouts returns at most one page of payouts matching filter, ordered by ID.
func (s *SQLiteStore) ListPayouts(ctx context.Context, filter storage.PayoutFilter) ([]*models.Payout, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.in("id", filter.IDs)
	}
	if filter.DealShortID != "" {
		w.add("deal_short_id = ?", filter.DealShortID)
	}
	if filter.MID != "" {
		w.add("mid = ?", filter.MID)
	}
	if filter.EventID != "" {
		w.add("event_id = ?", filter.EventID)
	}
	if filter.PartnerID != "" {
		w.add("partner_id = ?", filter.PartnerID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	args := append(w.args, s.clampLimit(filter.Limit), filter.Offset)
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+payoutColumns+" FROM payouts"+w.String()+" ORDER BY id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}
	return payouts, nil
}

// UpdatePayout replaces a payout's participant and allocation fields.
func (s *SQLiteStore) UpdatePayout(ctx context.Context, p *models.Payout) error {
	p.UpdatedAt = time.Now().Unix()
	n, err := execCount(ctx, s.q, "update payout",
		`UPDATE payouts SET partner_id = ?, partner_name = ?, role = ?, split = ?, amount = ?,
		 base_amount = ?, status = ?, mid = ?, updated_at = ? WHERE id = ?`,
		p.PartnerID, p.PartnerName, p.Role, p.Split.String(), p.Amount.String(),
		p.BaseAmount.String(), p.Status, p.MID, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("payout %w: %s", storage.ErrNotFound, p.ID)
	}
	return nil
}

// SetPayoutStatus sets the assignment status of the given payouts.
func (s *SQLiteStore) SetPayoutStatus(ctx context.Context, payoutIDs []string, status models.AssignmentStatus) (int, error) {
	if len(payoutIDs) == 0 {
		return 0, nil
	}
	ph, args := inClause(payoutIDs)
	return execCount(ctx, s.q, "set payout status",
		"UPDATE payouts SET status = ?, updated_at = ? WHERE id IN ("+ph+")",
		append([]any{status, time.Now().Unix()}, args...)...)
}

// SetPayoutsPaid toggles the paid flag. paidAt is ignored when paid is false.
func (s *SQLiteStore) SetPayoutsPaid(ctx context.Context, payoutIDs []string, paid bool, paidAt int64) (int, error) {
	if len(payoutIDs) == 0 {
		return 0, nil
	}
	if !paid {
		paidAt = 0
	}
	ph, args := inClause(payoutIDs)
	return execCount(ctx, s.q, "set payouts paid",
		"UPDATE payouts SET paid = ?, paid_at = ?, updated_at = ? WHERE id IN ("+ph+")",
		append([]any{paid, paidAt, time.Now().Unix()}, args...)...)
}

// SetPayoutLedgerID records the external ledger record a payout is synced to.
func (s *SQLiteStore) SetPayoutLedgerID(ctx context.Context, payoutID, recordID string) error {
	n, err := execCount(ctx, s.q, "set payout ledger id",
		"UPDATE payouts SET ledger_record_id = ? WHERE id = ?", recordID, payoutID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("payout %w: %s", storage.ErrNotFound, payoutID)
	}
	return nil
}

// UpdatePayoutsMID stamps a new MID on every payout of a deal.
func (s *SQLiteStore) UpdatePayoutsMID(ctx context.Context, dealShortID, mid string) (int, error) {
	return execCount(ctx, s.q, "update payout MIDs",
		"UPDATE payouts SET mid = ?, updated_at = ? WHERE deal_short_id = ?",
		mid, time.Now().Unix(), dealShortID)
}

// DeletePayoutsByDeal removes every payout of a deal.
func (s *SQLiteStore) DeletePayoutsByDeal(ctx context.Context, dealShortID string) (int, error) {
	return execCount(ctx, s.q, "delete payouts",
		"DELETE FROM payouts WHERE deal_short_id = ?", dealShortID)
}

func scanPayout(row rowScanner) (*models.Payout, error) {
	p := &models.Payout{}
	err := row.Scan(&p.ID, &p.DealShortID, &p.EventID, &p.MID, &p.MerchantName, &p.Month, &p.Category,
		&p.PartnerID, &p.PartnerName, &p.Role, &p.Split, &p.Amount, &p.BaseAmount, &p.Status,
		&p.Paid, &p.PaidAt, &p.LedgerRecordID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
