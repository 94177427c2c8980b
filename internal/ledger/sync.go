package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/ratelimit"
)

// DefaultPageSize is the page size requested when reading the ledger.
const DefaultPageSize = 100

// SyncClient wraps a Client with paginated reads and batched, rate-limited
// writes. A failed batch is recorded and the remaining batches still run;
// nothing is retried.
type SyncClient struct {
	client    Client
	batchSize int
	pageSize  int
	limiter   ratelimit.Limiter
}

// SyncOption configures a SyncClient.
type SyncOption func(*SyncClient)

// WithBatchSize sets the write batch size, capped at MaxBatchSize.
func WithBatchSize(n int) SyncOption {
	return func(s *SyncClient) {
		if n > 0 && n <= MaxBatchSize {
			s.batchSize = n
		}
	}
}

// WithPageSize sets the read page size.
func WithPageSize(n int) SyncOption {
	return func(s *SyncClient) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLimiter replaces the limiter derived from the batch delay.
func WithLimiter(l ratelimit.Limiter) SyncOption {
	return func(s *SyncClient) {
		s.limiter = l
	}
}

// NewSyncClient creates a SyncClient that spaces ledger calls at least delay
// apart. A zero delay disables spacing.
func NewSyncClient(client Client, delay time.Duration, opts ...SyncOption) *SyncClient {
	s := &SyncClient{
		client:    client,
		batchSize: MaxBatchSize,
		pageSize:  DefaultPageSize,
	}
	if delay > 0 {
		s.limiter = ratelimit.New(1, ratelimit.Per(delay), ratelimit.WithoutSlack)
	} else {
		s.limiter = ratelimit.NewUnlimited()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchSize returns the configured write batch size.
func (s *SyncClient) BatchSize() int {
	return s.batchSize
}

// FetchAll reads every record matching formula, following the cursor until
// the ledger stops returning one.
func (s *SyncClient) FetchAll(ctx context.Context, formula string) ([]Record, error) {
	var all []Record
	opts := ListOptions{Formula: formula, PageSize: s.pageSize}
	for {
		s.limiter.Take()
		page, err := s.client.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		opts.Offset = page.Offset
	}
}

// FetchByPayoutIDs reads every record referencing one of ids.
func (s *SyncClient) FetchByPayoutIDs(ctx context.Context, ids []string) ([]Record, error) {
	var all []Record
	for _, formula := range PayoutIDFormulas(ids) {
		records, err := s.FetchAll(ctx, formula)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// CreateAll inserts records in batches and returns the created records plus
// one message per failed batch.
func (s *SyncClient) CreateAll(ctx context.Context, fields []Fields) ([]Record, []string) {
	var created []Record
	var errs []string
	for n, batch := range chunk(fields, s.batchSize) {
		s.limiter.Take()
		records, err := s.client.Create(ctx, batch)
		if err != nil {
			errs = append(errs, s.batchError("create", n+1, len(batch), err))
			continue
		}
		created = append(created, records...)
	}
	return created, errs
}

// UpdateAll patches records in batches.
func (s *SyncClient) UpdateAll(ctx context.Context, records []Record) ([]Record, []string) {
	var updated []Record
	var errs []string
	for n, batch := range chunk(records, s.batchSize) {
		s.limiter.Take()
		out, err := s.client.Update(ctx, batch)
		if err != nil {
			errs = append(errs, s.batchError("update", n+1, len(batch), err))
			continue
		}
		updated = append(updated, out...)
	}
	return updated, errs
}

// DeleteAll removes records in batches and returns how many were deleted.
func (s *SyncClient) DeleteAll(ctx context.Context, recordIDs []string) (int, []string) {
	deleted := 0
	var errs []string
	for n, batch := range chunk(recordIDs, s.batchSize) {
		s.limiter.Take()
		if err := s.client.Delete(ctx, batch); err != nil {
			errs = append(errs, s.batchError("delete", n+1, len(batch), err))
			continue
		}
		deleted += len(batch)
	}
	return deleted, errs
}

func (s *SyncClient) batchError(op string, n, size int, err error) string {
	slog.Warn("Ledger batch failed", "op", op, "batch", n, "records", size, "error", err)
	return fmt.Sprintf("%s batch %d (%d records): %v", op, n, size, err)
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}
