// Package ledger talks to the external tabular ledger that mirrors payouts
// for reporting and payment. The ledger is a paginated record store keyed by
// its own opaque record IDs; each record carries the local payout ID in one
// of its fields.
package ledger

import "context"

// MaxBatchSize is the most records the ledger accepts in one write call.
const MaxBatchSize = 10

// Fields is the field map of one ledger record.
type Fields map[string]any

// Record is one ledger row.
type Record struct {
	ID          string `json:"id,omitempty"`
	Fields      Fields `json:"fields"`
	CreatedTime string `json:"createdTime,omitempty"`
}

// ListOptions filters and pages a List call. Offset is the opaque cursor
// returned by the previous page.
type ListOptions struct {
	Formula  string
	PageSize int
	Offset   string
}

// Page is one page of records. An empty Offset means there are no more pages.
type Page struct {
	Records []Record
	Offset  string
}

// Client is the raw ledger API. Write calls accept at most MaxBatchSize records.
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client
type Client interface {
	List(ctx context.Context, opts ListOptions) (*Page, error)
	Create(ctx context.Context, fields []Fields) ([]Record, error)
	Update(ctx context.Context, records []Record) ([]Record, error)
	Delete(ctx context.Context, recordIDs []string) error
}
