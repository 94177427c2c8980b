package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
)

const dealColumns = "id, short_id, mid, merchant_name, category, participants, net_residual, created_at, updated_at"

// newShortID derives the operator-facing deal ID from a fresh UUID.
func newShortID() string {
	return storage.ShortIDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// CreateDeal persists a new deal.
func (s *SQLiteStore) CreateDeal(ctx context.Context, deal *models.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	if deal.ShortID == "" {
		deal.ShortID = newShortID()
	}
	now := time.Now().Unix()
	if deal.CreatedAt == 0 {
		deal.CreatedAt = now
	}
	deal.UpdatedAt = now

	participants, err := sonic.Marshal(deal.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT short_id FROM deals WHERE mid = ? AND category = ?",
		deal.MID, deal.Category,
	).Scan(&existing)
	if err == nil {
		return fmt.Errorf("%w: deal %s already exists for MID %s (%s)", storage.ErrConflict, existing, deal.MID, deal.Category)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing deal: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO deals ("+dealColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		deal.ID, deal.ShortID, deal.MID, deal.MerchantName, deal.Category,
		string(participants), deal.NetResidual.String(), deal.CreatedAt, deal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDeal retrieves a deal by internal ID.
func (s *SQLiteStore) GetDeal(ctx context.Context, dealID string) (*models.Deal, error) {
	deal, err := scanDeal(s.q.QueryRowContext(ctx, "SELECT "+dealColumns+" FROM deals WHERE id = ?", dealID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deal %w: %s", storage.ErrNotFound, dealID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return deal, nil
}

// GetDealByShortID retrieves a deal by its external-friendly ID.
func (s *SQLiteStore) GetDealByShortID(ctx context.Context, shortID string) (*models.Deal, error) {
	deal, err := scanDeal(s.q.QueryRowContext(ctx, "SELECT "+dealColumns+" FROM deals WHERE short_id = ?", shortID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deal %w: %s", storage.ErrNotFound, shortID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return deal, nil
}

// FindDeal retrieves the deal for a (MID, category) pair.
func (s *SQLiteStore) FindDeal(ctx context.Context, mid string, category models.PayoutCategory) (*models.Deal, error) {
	deal, err := scanDeal(s.q.QueryRowContext(ctx,
		"SELECT "+dealColumns+" FROM deals WHERE mid = ? AND category = ?", mid, category))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deal %w: MID %s (%s)", storage.ErrNotFound, mid, category)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find deal: %w", err)
	}
	return deal, nil
}

// ListDeals pages through deals ordered by creation time.
func (s *SQLiteStore) ListDeals(ctx context.Context, offset, limit int) ([]*models.Deal, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+dealColumns+" FROM deals ORDER BY created_at, id LIMIT ? OFFSET ?",
		s.clampLimit(limit), offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	var deals []*models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, deal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deals: %w", err)
	}
	return deals, nil
}

// UpdateDeal updates an existing deal.
func (s *SQLiteStore) UpdateDeal(ctx context.Context, deal *models.Deal) error {
	participants, err := sonic.Marshal(deal.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT short_id FROM deals WHERE mid = ? AND category = ? AND id != ?",
		deal.MID, deal.Category, deal.ID,
	).Scan(&existing)
	if err == nil {
		return fmt.Errorf("%w: deal %s already exists for MID %s (%s)", storage.ErrConflict, existing, deal.MID, deal.Category)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing deal: %w", err)
	}

	deal.UpdatedAt = time.Now().Unix()
	n, err := execCount(ctx, tx, "update deal",
		"UPDATE deals SET mid = ?, merchant_name = ?, participants = ?, net_residual = ?, updated_at = ? WHERE id = ?",
		deal.MID, deal.MerchantName, string(participants), deal.NetResidual.String(), deal.UpdatedAt, deal.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("deal %w: %s", storage.ErrNotFound, deal.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteDeal removes a deal row. Dependent rows are the caller's concern.
func (s *SQLiteStore) DeleteDeal(ctx context.Context, dealID string) error {
	n, err := execCount(ctx, s.q, "delete deal", "DELETE FROM deals WHERE id = ?", dealID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("deal %w: %s", storage.ErrNotFound, dealID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (*models.Deal, error) {
	deal := &models.Deal{}
	var participants string
	if err := row.Scan(&deal.ID, &deal.ShortID, &deal.MID, &deal.MerchantName, &deal.Category,
		&participants, &deal.NetResidual, &deal.CreatedAt, &deal.UpdatedAt); err != nil {
		return nil, err
	}
	if err := sonic.UnmarshalString(participants, &deal.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants of deal %s: %w", deal.ID, err)
	}
	return deal, nil
}
