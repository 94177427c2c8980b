// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mmynk/residuals/internal/ledger"
)

// Ledger is an in-memory ledger.Client. It understands the equality and
// OR() formulas the ledger package builds.
type Ledger struct {
	mu       sync.Mutex
	records  map[string]ledger.Record
	order    []string
	nextID   int
	failures map[string][]error

	// Calls counts API calls by method name.
	Calls map[string]int
}

var _ ledger.Client = (*Ledger)(nil)

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		records:  make(map[string]ledger.Record),
		failures: make(map[string][]error),
		Calls:    make(map[string]int),
	}
}

// Seed inserts records directly, bypassing call counting. Records without an
// ID get one.
func (l *Ledger) Seed(records ...ledger.Record) []ledger.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Record, 0, len(records))
	for _, r := range records {
		out = append(out, l.insert(r))
	}
	return out
}

// FailNext makes the next call to method ("List", "Create", "Update" or
// "Delete") return err. Calls queue up.
func (l *Ledger) FailNext(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[method] = append(l.failures[method], err)
}

// Records returns every stored record in insertion order.
func (l *Ledger) Records() []ledger.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Record, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.records[id])
	}
	return out
}

// ByPayoutID returns the records referencing payoutID.
func (l *Ledger) ByPayoutID(payoutID string) []ledger.Record {
	var out []ledger.Record
	for _, r := range l.Records() {
		if ledger.PayoutIDOf(r) == payoutID {
			out = append(out, r)
		}
	}
	return out
}

func (l *Ledger) List(_ context.Context, opts ledger.ListOptions) (*ledger.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.call("List"); err != nil {
		return nil, err
	}

	match := compile(opts.Formula)
	var matched []ledger.Record
	for _, id := range l.order {
		if r := l.records[id]; match(r) {
			matched = append(matched, r)
		}
	}

	start := 0
	if opts.Offset != "" {
		n, err := strconv.Atoi(opts.Offset)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q", opts.Offset)
		}
		start = n
	}
	size := opts.PageSize
	if size <= 0 {
		size = 100
	}
	end := min(start+size, len(matched))
	if start > end {
		start = end
	}

	page := &ledger.Page{Records: matched[start:end]}
	if end < len(matched) {
		page.Offset = strconv.Itoa(end)
	}
	return page, nil
}

func (l *Ledger) Create(_ context.Context, fields []ledger.Fields) ([]ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.call("Create"); err != nil {
		return nil, err
	}
	if len(fields) > ledger.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds %d", len(fields), ledger.MaxBatchSize)
	}
	out := make([]ledger.Record, 0, len(fields))
	for _, f := range fields {
		out = append(out, l.insert(ledger.Record{Fields: f}))
	}
	return out, nil
}

func (l *Ledger) Update(_ context.Context, records []ledger.Record) ([]ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.call("Update"); err != nil {
		return nil, err
	}
	if len(records) > ledger.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds %d", len(records), ledger.MaxBatchSize)
	}
	out := make([]ledger.Record, 0, len(records))
	for _, r := range records {
		existing, ok := l.records[r.ID]
		if !ok {
			return nil, fmt.Errorf("record %s not found", r.ID)
		}
		merged := ledger.Fields{}
		for k, v := range existing.Fields {
			merged[k] = v
		}
		for k, v := range r.Fields {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		existing.Fields = merged
		l.records[r.ID] = existing
		out = append(out, existing)
	}
	return out, nil
}

func (l *Ledger) Delete(_ context.Context, recordIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.call("Delete"); err != nil {
		return err
	}
	if len(recordIDs) > ledger.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d", len(recordIDs), ledger.MaxBatchSize)
	}
	for _, id := range recordIDs {
		if _, ok := l.records[id]; !ok {
			return fmt.Errorf("record %s not found", id)
		}
	}
	drop := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		delete(l.records, id)
		drop[id] = true
	}
	kept := l.order[:0]
	for _, id := range l.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	l.order = kept
	return nil
}

func (l *Ledger) call(method string) error {
	l.Calls[method]++
	if queued := l.failures[method]; len(queued) > 0 {
		l.failures[method] = queued[1:]
		return queued[0]
	}
	return nil
}

func (l *Ledger) insert(r ledger.Record) ledger.Record {
	if r.ID == "" {
		l.nextID++
		r.ID = fmt.Sprintf("rec%05d", l.nextID)
	}
	fields := ledger.Fields{}
	for k, v := range r.Fields {
		fields[k] = v
	}
	r.Fields = fields
	if _, exists := l.records[r.ID]; !exists {
		l.order = append(l.order, r.ID)
	}
	l.records[r.ID] = r
	return r
}

var termPattern = regexp.MustCompile(`\{([^}]+)\}='((?:[^'\\]|\\.)*)'`)

type term struct {
	field string
	value string
}

func compile(formula string) func(ledger.Record) bool {
	if strings.TrimSpace(formula) == "" {
		return func(ledger.Record) bool { return true }
	}
	var terms []term
	for _, m := range termPattern.FindAllStringSubmatch(formula, -1) {
		value := strings.ReplaceAll(m[2], `\'`, `'`)
		value = strings.ReplaceAll(value, `\\`, `\`)
		terms = append(terms, term{field: m[1], value: value})
	}
	return func(r ledger.Record) bool {
		for _, t := range terms {
			if ledger.Stringify(r.Fields[t.field]) == t.value {
				return true
			}
		}
		return false
	}
}
