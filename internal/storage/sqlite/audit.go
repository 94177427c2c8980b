package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
)

// AppendAudit inserts an audit entry.
func (s *SQLiteStore) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, entity_type, entity_id, previous, next, description, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.EntityType, e.EntityID, e.Previous, e.Next, e.Description, e.Actor, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns audit entries matching filter, newest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error) {
	var w where
	if filter.EntityID != "" {
		w.add("entity_id = ?", filter.EntityID)
	}
	if filter.EntityType != "" {
		w.add("entity_type = ?", filter.EntityType)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		w.add("(LOWER(description) LIKE ? OR LOWER(entity_id) LIKE ?)", like, like)
	}

	args := append(w.args, s.clampLimit(filter.Limit), filter.Offset)
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, action, entity_type, entity_id, previous, next, description, actor, created_at
		 FROM audit_log`+w.String()+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.Previous, &e.Next,
			&e.Description, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}

// UpsertPartner inserts or replaces a partner directory entry.
func (s *SQLiteStore) UpsertPartner(ctx context.Context, p *models.Partner) error {
	p.UpdatedAt = time.Now().Unix()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO partners (id, name, email, role, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email,
		 role = excluded.role, updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Email, p.Role, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert partner: %w", err)
	}
	return nil
}

// GetPartner retrieves a partner by external partner ID.
func (s *SQLiteStore) GetPartner(ctx context.Context, partnerID string) (*models.Partner, error) {
	p := &models.Partner{}
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name, email, role, updated_at FROM partners WHERE id = ?", partnerID,
	).Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("partner %w: %s", storage.ErrNotFound, partnerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}
	return p, nil
}
