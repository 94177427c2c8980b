package participant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/residuals/internal/metrics"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
)

// PartnerSource loads partner directory entries.
type PartnerSource interface {
	GetPartner(ctx context.Context, partnerID string) (*models.Partner, error)
}

// Directory resolves partner IDs against the partner table through a cache.
type Directory struct {
	source PartnerSource
	cache  *Cache[string, *models.Partner]
}

// NewDirectory creates a Directory reading from source.
func NewDirectory(source PartnerSource, cache *Cache[string, *models.Partner]) *Directory {
	return &Directory{source: source, cache: cache}
}

// Lookup returns the partner for id, or nil if the directory has no entry.
func (d *Directory) Lookup(ctx context.Context, id string) (*models.Partner, error) {
	if p, ok := d.cache.Get(id); ok {
		metrics.PartnerCacheHits.Inc()
		return p, nil
	}
	metrics.PartnerCacheMisses.Inc()
	p, err := d.source.GetPartner(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up partner %s: %w", id, err)
	}
	d.cache.Set(id, p)
	return p, nil
}

// Enrich fills blank names, roles and emails from the directory and returns
// the partner IDs the directory does not know. Unknown IDs are not an error:
// the partner table may lag behind the ledger.
func (d *Directory) Enrich(ctx context.Context, participants []models.Participant) ([]string, error) {
	var unknown []string
	for i := range participants {
		p := &participants[i]
		partner, err := d.Lookup(ctx, p.PartnerID)
		if err != nil {
			return nil, err
		}
		if partner == nil {
			unknown = append(unknown, p.PartnerID)
			continue
		}
		if p.Name == "" {
			p.Name = partner.Name
		}
		if p.Role == "" {
			p.Role = partner.Role
		}
		if p.Email == "" {
			p.Email = partner.Email
		}
	}
	if len(unknown) > 0 {
		slog.Warn("Participants reference unknown partners", "partner_ids", unknown)
	}
	return unknown, nil
}

// Invalidate drops a cached partner, e.g. after the directory entry changes.
func (d *Directory) Invalidate(id string) {
	d.cache.Delete(id)
}
