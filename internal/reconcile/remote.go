package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/residuals/internal/ledger"
	"github.com/mmynk/residuals/internal/metrics"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
)

// Update is a queued patch of one ledger record.
type Update struct {
	Payout  *models.Payout
	Record  ledger.Record
	Changed []string
}

// Orphan is a ledger record with no local payout.
type Orphan struct {
	RecordID string `json:"record_id"`
	PayoutID string `json:"payout_id"`
	MID      string `json:"mid"`
	Partner  string `json:"partner"`
	Amount   string `json:"amount"`
}

// Plan is the set of ledger writes that would bring the ledger in line with
// the local payouts.
type Plan struct {
	Creates []*models.Payout
	Updates []Update
	// Deletes are duplicate records beyond the first for one payout.
	Deletes []ledger.Record
	// Orphans are reported, never deleted by Execute.
	Orphans   []Orphan
	Unchanged int
}

// Empty reports whether the plan has no writes.
func (p *Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// BuildPlan diffs local payouts against remote records. Remote records are
// bucketed by the payout ID they carry, keeping every record so that
// duplicates are visible. For each payout: no record queues a create, one
// record queues an update only if a compared field differs, and several
// records queue an update of the first and a delete of the rest.
func BuildPlan(local []*models.Payout, remote []ledger.Record) *Plan {
	var bucketOrder []string
	buckets := make(map[string][]ledger.Record)
	for _, rec := range remote {
		id := ledger.PayoutIDOf(rec)
		if _, ok := buckets[id]; !ok {
			bucketOrder = append(bucketOrder, id)
		}
		buckets[id] = append(buckets[id], rec)
	}

	plan := &Plan{}
	seen := make(map[string]bool, len(local))
	for _, p := range local {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		matches := buckets[p.ID]
		want := ledger.FieldsForPayout(p)
		switch len(matches) {
		case 0:
			plan.Creates = append(plan.Creates, p)
		case 1:
			changed := ledger.ChangedFields(want, matches[0].Fields)
			if len(changed) == 0 {
				plan.Unchanged++
				continue
			}
			plan.Updates = append(plan.Updates, Update{Payout: p, Record: matches[0], Changed: changed})
		default:
			plan.Updates = append(plan.Updates, Update{
				Payout:  p,
				Record:  matches[0],
				Changed: ledger.ChangedFields(want, matches[0].Fields),
			})
			plan.Deletes = append(plan.Deletes, matches[1:]...)
		}
	}

	for _, id := range bucketOrder {
		if seen[id] {
			continue
		}
		for _, rec := range buckets[id] {
			plan.Orphans = append(plan.Orphans, Orphan{
				RecordID: rec.ID,
				PayoutID: id,
				MID:      ledger.Stringify(rec.Fields[ledger.FieldMID]),
				Partner:  ledger.Stringify(rec.Fields[ledger.FieldPartner]),
				Amount:   ledger.Stringify(rec.Fields[ledger.FieldAmount]),
			})
		}
	}
	return plan
}

// Result reports the outcome of a sync. Errors holds one message per failed
// batch or linkage write; a non-empty Errors does not mean the sync failed.
type Result struct {
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Deleted    int      `json:"deleted"`
	Unchanged  int      `json:"unchanged"`
	Duplicates int      `json:"duplicates"`
	Orphans    []Orphan `json:"orphans"`
	Errors     []string `json:"errors"`
}

// Scope selects the payouts a sync covers. The zero Scope covers everything.
// PayoutIDs takes precedence over MID.
type Scope struct {
	PayoutIDs []string
	MID       string
}

// Full reports whether the scope covers every payout.
func (s Scope) Full() bool {
	return len(s.PayoutIDs) == 0 && s.MID == ""
}

func (s Scope) String() string {
	switch {
	case len(s.PayoutIDs) > 0:
		return fmt.Sprintf("%d payouts", len(s.PayoutIDs))
	case s.MID != "":
		return "mid " + s.MID
	}
	return "all payouts"
}

// Plan loads local payouts and remote records for scope and diffs them
// without writing anything.
func (r *Reconciler) Plan(ctx context.Context, scope Scope) (*Plan, error) {
	if r.sync == nil {
		return nil, ErrLedgerDisabled
	}

	filter := storage.PayoutFilter{IDs: scope.PayoutIDs}
	if len(scope.PayoutIDs) == 0 {
		filter.MID = scope.MID
	}
	local, err := storage.AllPayouts(ctx, r.store, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts: %w", err)
	}

	var remote []ledger.Record
	switch {
	case len(scope.PayoutIDs) > 0:
		remote, err = r.sync.FetchByPayoutIDs(ctx, scope.PayoutIDs)
	case scope.MID != "":
		remote, err = r.sync.FetchAll(ctx, ledger.MIDFormula(scope.MID))
	default:
		remote, err = r.sync.FetchAll(ctx, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger records: %w", err)
	}

	return BuildPlan(local, remote), nil
}

// Sync plans and executes a sync for scope.
func (r *Reconciler) Sync(ctx context.Context, scope Scope) (*Result, error) {
	if scope.Full() {
		slog.Info("Running full ledger sync")
	}
	plan, err := r.Plan(ctx, scope)
	if err != nil {
		return nil, err
	}
	result := r.Execute(ctx, plan)
	if scope.Full() {
		metrics.LedgerOrphans.Set(float64(len(result.Orphans)))
	}

	r.audit(ctx, &models.AuditEntry{
		Action:     models.ActionSync,
		EntityType: models.EntityLedger,
		EntityID:   scope.MID,
		Next:       models.Snapshot(result),
		Description: fmt.Sprintf("Ledger sync of %s: %d created, %d updated, %d deleted, %d orphans, %d errors",
			scope, result.Created, result.Updated, result.Deleted, len(result.Orphans), len(result.Errors)),
	})
	return result, nil
}

// SyncPayouts syncs the given payouts. Payouts that no longer exist locally
// show up as orphans.
func (r *Reconciler) SyncPayouts(ctx context.Context, payoutIDs []string) (*Result, error) {
	if len(payoutIDs) == 0 {
		return &Result{}, nil
	}
	return r.Sync(ctx, Scope{PayoutIDs: payoutIDs})
}

// Execute applies a plan: deletes, then creates, then updates. Each step runs
// in rate-limited batches and failed batches are collected, not retried.
func (r *Reconciler) Execute(ctx context.Context, plan *Plan) *Result {
	result := &Result{
		Unchanged:  plan.Unchanged,
		Duplicates: len(plan.Deletes),
		Orphans:    plan.Orphans,
	}
	if r.sync == nil {
		result.Errors = append(result.Errors, ErrLedgerDisabled.Error())
		return result
	}

	if len(plan.Deletes) > 0 {
		ids := make([]string, 0, len(plan.Deletes))
		for _, rec := range plan.Deletes {
			ids = append(ids, rec.ID)
		}
		deleted, errs := r.sync.DeleteAll(ctx, ids)
		result.Deleted = deleted
		result.Errors = append(result.Errors, errs...)
	}

	if len(plan.Creates) > 0 {
		fields := make([]ledger.Fields, 0, len(plan.Creates))
		for _, p := range plan.Creates {
			fields = append(fields, ledger.FieldsForPayout(p))
		}
		created, errs := r.sync.CreateAll(ctx, fields)
		result.Created = len(created)
		result.Errors = append(result.Errors, errs...)

		for _, rec := range created {
			r.link(ctx, ledger.PayoutIDOf(rec), "", rec.ID, result)
		}
	}

	if len(plan.Updates) > 0 {
		var patches []ledger.Record
		for _, u := range plan.Updates {
			if len(u.Changed) > 0 {
				want := ledger.FieldsForPayout(u.Payout)
				patches = append(patches, ledger.Record{ID: u.Record.ID, Fields: ledger.UpdateFields(want, u.Record.Fields)})
			}
			r.link(ctx, u.Payout.ID, u.Payout.LedgerRecordID, u.Record.ID, result)
		}
		updated, errs := r.sync.UpdateAll(ctx, patches)
		result.Updated = len(updated)
		result.Errors = append(result.Errors, errs...)
	}

	metrics.LedgerOps.WithLabelValues(metrics.OpCreate).Add(float64(result.Created))
	metrics.LedgerOps.WithLabelValues(metrics.OpUpdate).Add(float64(result.Updated))
	metrics.LedgerOps.WithLabelValues(metrics.OpDelete).Add(float64(result.Deleted))
	metrics.LedgerDuplicates.Add(float64(result.Duplicates))
	metrics.LedgerBatchErrors.Add(float64(len(result.Errors)))

	slog.Info("Ledger sync finished",
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"unchanged", result.Unchanged,
		"duplicates", result.Duplicates,
		"orphans", len(result.Orphans),
		"errors", len(result.Errors),
	)
	return result
}

func (r *Reconciler) link(ctx context.Context, payoutID, current, recordID string, result *Result) {
	if payoutID == "" || current == recordID {
		return
	}
	if err := r.store.SetPayoutLedgerID(ctx, payoutID, recordID); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("link payout %s to %s: %v", payoutID, recordID, err))
	}
}

// DeleteOrphans deletes ledger records an operator has confirmed as orphans.
// Records that still belong to a local payout are refused.
func (r *Reconciler) DeleteOrphans(ctx context.Context, recordIDs []string) (*Result, error) {
	if r.sync == nil {
		return nil, ErrLedgerDisabled
	}
	result := &Result{}
	if len(recordIDs) == 0 {
		return result, nil
	}

	linked, err := storage.AllPayouts(ctx, r.store, storage.PayoutFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts: %w", err)
	}
	owned := make(map[string]string, len(linked))
	for _, p := range linked {
		if p.LedgerRecordID != "" {
			owned[p.LedgerRecordID] = p.ID
		}
	}

	var ids []string
	for _, id := range recordIDs {
		if payoutID, ok := owned[id]; ok {
			result.Errors = append(result.Errors, fmt.Sprintf("record %s belongs to payout %s", id, payoutID))
			continue
		}
		ids = append(ids, id)
	}

	deleted, errs := r.sync.DeleteAll(ctx, ids)
	result.Deleted = deleted
	result.Errors = append(result.Errors, errs...)
	metrics.LedgerOps.WithLabelValues(metrics.OpDelete).Add(float64(deleted))

	r.audit(ctx, &models.AuditEntry{
		Action:      models.ActionDelete,
		EntityType:  models.EntityLedger,
		Previous:    models.Snapshot(ids),
		Description: fmt.Sprintf("Deleted %d orphaned ledger records", deleted),
	})
	return result, nil
}
