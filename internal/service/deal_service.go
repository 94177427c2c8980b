package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/residuals/internal/calculator"
	"github.com/mmynk/residuals/internal/cascade"
	"github.com/mmynk/residuals/internal/middleware"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/outbox"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/storage"
	"github.com/mmynk/residuals/pkg/api"
)

// DealService implements the Connect DealService: event intake, deal reads,
// deal-level cascades and the paid toggle.
type DealService struct {
	store      storage.Store
	reconciler *reconcile.Reconciler
	cascade    *cascade.Updater
	publisher  outbox.Publisher
	directory  *participant.Directory
	now        func() time.Time
}

var _ api.DealServiceHandler = (*DealService)(nil)

// NewDealService creates a new DealService. directory may be nil, in which
// case participant names are taken as given.
func NewDealService(store storage.Store, rec *reconcile.Reconciler, updater *cascade.Updater, publisher outbox.Publisher, directory *participant.Directory) *DealService {
	return &DealService{
		store:      store,
		reconciler: rec,
		cascade:    updater,
		publisher:  publisher,
		directory:  directory,
		now:        time.Now,
	}
}

func (s *DealService) CreateEvents(ctx context.Context, req *connect.Request[api.CreateEventsRequest]) (*connect.Response[api.CreateEventsResponse], error) {
	if len(req.Msg.Events) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: no events given", errInvalidRequest))
	}

	events := make([]*models.Event, len(req.Msg.Events))
	for i, in := range req.Msg.Events {
		ev, err := toEvent(in)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("event %d: %w", i, err))
		}
		events[i] = ev
	}

	if err := s.store.CreateEvents(ctx, events); err != nil {
		return nil, toConnectError("CreateEvents", err)
	}

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	slog.Info("Events created", "count", len(ids))
	return connect.NewResponse(&api.CreateEventsResponse{Success: true, EventIDs: ids}), nil
}

func toEvent(in api.EventInput) (*models.Event, error) {
	mid := strings.TrimSpace(in.MID)
	if mid == "" {
		return nil, fmt.Errorf("%w: mid is required", errInvalidRequest)
	}
	if strings.TrimSpace(in.Month) == "" {
		return nil, fmt.Errorf("%w: month is required", errInvalidRequest)
	}
	category := models.PayoutCategory(in.Category)
	if category == "" {
		category = models.CategoryResidual
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", errInvalidRequest, in.Category)
	}
	return &models.Event{
		MID:          mid,
		MerchantName: strings.TrimSpace(in.MerchantName),
		Month:        strings.TrimSpace(in.Month),
		Category:     category,
		NetResidual:  in.NetResidual,
	}, nil
}

// AssignEvents links unassigned events of one merchant and category to their
// deal, creating the deal from the given participants when none exists, and
// materializes pending payouts for them. Participants supplied for an
// existing deal are ignored with a warning. The deal write, the event links
// and the payouts commit together.
func (s *DealService) AssignEvents(ctx context.Context, req *connect.Request[api.AssignEventsRequest]) (*connect.Response[api.AssignEventsResponse], error) {
	events, err := s.loadUnassigned(ctx, req.Msg.EventIDs)
	if err != nil {
		return nil, toConnectError("AssignEvents", err)
	}
	first := events[0]
	actor := middleware.GetOperatorID(ctx)

	total := decimal.Zero
	eventIDs := make([]string, len(events))
	for i, ev := range events {
		total = total.Add(ev.NetResidual)
		eventIDs[i] = ev.ID
	}

	resp := &api.AssignEventsResponse{Success: true}
	deal, err := s.store.FindDeal(ctx, first.MID, first.Category)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		deal, resp.UnknownPartners, err = s.newDeal(ctx, first, req.Msg, total)
		if err != nil {
			return nil, toConnectError("AssignEvents", err)
		}
		resp.DealCreated = true
	case err != nil:
		return nil, toConnectError("AssignEvents", err)
	default:
		if len(req.Msg.Participants) > 0 {
			resp.Warnings = append(resp.Warnings,
				fmt.Sprintf("deal %s already exists; supplied participants were ignored", deal.ShortID))
		}
		deal.NetResidual = deal.NetResidual.Add(total)
	}

	var payouts []*models.Payout
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if resp.DealCreated {
			if err := tx.CreateDeal(ctx, deal); err != nil {
				return err
			}
		} else if err := tx.UpdateDeal(ctx, deal); err != nil {
			return err
		}
		if err := tx.AssignEvents(ctx, eventIDs, deal.ID, deal.MID); err != nil {
			return err
		}
		for _, ev := range events {
			ev.DealID = deal.ID
			ev.MID = deal.MID
		}
		var err error
		payouts, err = s.reconciler.WithStore(tx).MaterializeEvents(ctx, deal, events)
		return err
	})
	if err != nil {
		return nil, toConnectError("AssignEvents", err)
	}

	if resp.DealCreated {
		s.audit(ctx, &models.AuditEntry{
			Action:      models.ActionCreate,
			EntityType:  models.EntityDeal,
			EntityID:    deal.ID,
			Next:        models.Snapshot(deal),
			Description: fmt.Sprintf("Created deal %s for MID %s (%s)", deal.ShortID, deal.MID, deal.Category),
			Actor:       actor,
		})
	}
	s.audit(ctx, &models.AuditEntry{
		Action:      models.ActionUpdate,
		EntityType:  models.EntityEvent,
		EntityID:    deal.ID,
		Description: fmt.Sprintf("Assigned %d events to deal %s (%d payouts)", len(events), deal.ShortID, len(payouts)),
		Actor:       actor,
	})

	resp.DealID = deal.ID
	resp.DealShortID = deal.ShortID
	resp.PayoutsCreated = len(payouts)
	slog.Info("Events assigned", "deal_id", deal.ShortID, "events", len(events), "payouts", len(payouts))
	return connect.NewResponse(resp), nil
}

func (s *DealService) loadUnassigned(ctx context.Context, ids []string) ([]*models.Event, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no events given", errInvalidRequest)
	}
	seen := make(map[string]bool, len(ids))
	events := make([]*models.Event, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: event %s is listed more than once", errInvalidRequest, id)
		}
		seen[id] = true
		ev, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", id, err)
		}
		if ev.DealID != "" {
			return nil, fmt.Errorf("%w: event %s is already assigned", errInvalidRequest, id)
		}
		if len(events) > 0 && (ev.MID != events[0].MID || ev.Category != events[0].Category) {
			return nil, fmt.Errorf("%w: events span more than one MID or category", errInvalidRequest)
		}
		events = append(events, ev)
	}
	return events, nil
}

// newDeal builds, but does not persist, the deal for a first assignment.
func (s *DealService) newDeal(ctx context.Context, first *models.Event, msg *api.AssignEventsRequest, total decimal.Decimal) (*models.Deal, []string, error) {
	parts, err := participant.NormalizeAll(toRaws(msg.Participants))
	if err != nil {
		return nil, nil, err
	}
	if err := calculator.ValidateIntake(parts); err != nil {
		return nil, nil, err
	}
	unknown, err := s.enrich(ctx, parts)
	if err != nil {
		return nil, nil, err
	}

	name := msg.MerchantName
	if name == "" {
		name = first.MerchantName
	}
	return &models.Deal{
		MID:          first.MID,
		MerchantName: name,
		Category:     first.Category,
		Participants: parts,
		NetResidual:  total,
	}, unknown, nil
}

func (s *DealService) enrich(ctx context.Context, parts []models.Participant) ([]string, error) {
	if s.directory == nil {
		return nil, nil
	}
	return s.directory.Enrich(ctx, parts)
}

func (s *DealService) GetDeal(ctx context.Context, req *connect.Request[api.DealRequest]) (*connect.Response[api.GetDealResponse], error) {
	deal, err := storage.LookupDeal(ctx, s.store, req.Msg.DealID)
	if err != nil {
		return nil, toConnectError("GetDeal", err)
	}
	payouts, err := storage.AllPayouts(ctx, s.store, storage.PayoutFilter{DealShortID: deal.ShortID})
	if err != nil {
		return nil, toConnectError("GetDeal", err)
	}
	return connect.NewResponse(&api.GetDealResponse{
		Deal:    toAPIDeal(deal),
		Payouts: toAPIPayouts(payouts),
		Totals:  toAPITotals(calculator.TotalsByPartner(payouts)),
	}), nil
}

func (s *DealService) ListDeals(ctx context.Context, req *connect.Request[api.ListDealsRequest]) (*connect.Response[api.ListDealsResponse], error) {
	if req.Msg.Offset < 0 || req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: offset and limit must not be negative", errInvalidRequest))
	}
	deals, err := s.store.ListDeals(ctx, req.Msg.Offset, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError("ListDeals", err)
	}
	out := make([]api.Deal, len(deals))
	for i, d := range deals {
		out[i] = toAPIDeal(d)
	}
	return connect.NewResponse(&api.ListDealsResponse{Deals: out}), nil
}

func (s *DealService) UpdateParticipants(ctx context.Context, req *connect.Request[api.UpdateParticipantsRequest]) (*connect.Response[api.CascadeResponse], error) {
	slog.Info("Replacing deal participants", "deal_id", req.Msg.DealID, "participants", len(req.Msg.Participants))
	result, err := s.cascade.ReplaceParticipants(ctx, req.Msg.DealID, toRaws(req.Msg.Participants), middleware.GetOperatorID(ctx))
	if err != nil {
		return nil, toConnectError("UpdateParticipants", err)
	}
	return connect.NewResponse(toCascadeResponse(result)), nil
}

func (s *DealService) ChangeMID(ctx context.Context, req *connect.Request[api.ChangeMIDRequest]) (*connect.Response[api.CascadeResponse], error) {
	slog.Info("Changing deal MID", "deal_id", req.Msg.DealID, "mid", req.Msg.MID)
	result, err := s.cascade.ChangeMID(ctx, req.Msg.DealID, req.Msg.MID, middleware.GetOperatorID(ctx))
	if err != nil {
		return nil, toConnectError("ChangeMID", err)
	}
	return connect.NewResponse(toCascadeResponse(result)), nil
}

func (s *DealService) DeleteDeal(ctx context.Context, req *connect.Request[api.DealRequest]) (*connect.Response[api.CascadeResponse], error) {
	slog.Info("Deleting deal", "deal_id", req.Msg.DealID)
	result, err := s.cascade.DeleteDeal(ctx, req.Msg.DealID, middleware.GetOperatorID(ctx))
	if err != nil {
		return nil, toConnectError("DeleteDeal", err)
	}
	return connect.NewResponse(toCascadeResponse(result)), nil
}

func toCascadeResponse(r *cascade.Result) *api.CascadeResponse {
	return &api.CascadeResponse{
		Success:        true,
		DealID:         r.DealShortID,
		PayoutsUpdated: r.PayoutsUpdated,
		PayoutsCreated: r.PayoutsCreated,
		PayoutsDeleted: r.PayoutsDeleted,
		EventsUpdated:  r.EventsUpdated,
		EventsDeleted:  r.EventsDeleted,
		Warnings:       r.Warnings,
	}
}

// ConfirmDeal marks every pending payout of a deal confirmed and publishes
// them for ledger sync.
func (s *DealService) ConfirmDeal(ctx context.Context, req *connect.Request[api.DealRequest]) (*connect.Response[api.ConfirmDealResponse], error) {
	deal, err := storage.LookupDeal(ctx, s.store, req.Msg.DealID)
	if err != nil {
		return nil, toConnectError("ConfirmDeal", err)
	}
	pending, err := storage.AllPayouts(ctx, s.store, storage.PayoutFilter{
		DealShortID: deal.ShortID,
		Status:      models.AssignmentPending,
	})
	if err != nil {
		return nil, toConnectError("ConfirmDeal", err)
	}

	resp := &api.ConfirmDealResponse{Success: true}
	if len(pending) == 0 {
		return connect.NewResponse(resp), nil
	}

	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}
	n, err := s.store.SetPayoutStatus(ctx, ids, models.AssignmentConfirmed)
	if err != nil {
		return nil, toConnectError("ConfirmDeal", err)
	}
	resp.PayoutsConfirmed = n

	s.audit(ctx, &models.AuditEntry{
		Action:      models.ActionUpdate,
		EntityType:  models.EntityDeal,
		EntityID:    deal.ID,
		Description: fmt.Sprintf("Confirmed %d payouts for deal %s", n, deal.ShortID),
		Actor:       middleware.GetOperatorID(ctx),
	})
	resp.Warnings = s.publisher.Publish(ctx, outbox.PayoutsChanged{PayoutIDs: ids, Reason: "deal confirmed"})
	slog.Info("Deal confirmed", "deal_id", deal.ShortID, "payouts", n)
	return connect.NewResponse(resp), nil
}

// MarkPaid stamps or clears the paid flag on payouts and publishes them.
func (s *DealService) MarkPaid(ctx context.Context, req *connect.Request[api.MarkPaidRequest]) (*connect.Response[api.MarkPaidResponse], error) {
	if len(req.Msg.PayoutIDs) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: no payouts given", errInvalidRequest))
	}

	var paidAt int64
	if req.Msg.Paid {
		paidAt = s.now().Unix()
	}
	n, err := s.store.SetPayoutsPaid(ctx, req.Msg.PayoutIDs, req.Msg.Paid, paidAt)
	if err != nil {
		return nil, toConnectError("MarkPaid", err)
	}

	state := "unpaid"
	if req.Msg.Paid {
		state = "paid"
	}
	s.audit(ctx, &models.AuditEntry{
		Action:      models.ActionUpdate,
		EntityType:  models.EntityPayout,
		Next:        models.Snapshot(req.Msg.PayoutIDs),
		Description: fmt.Sprintf("Marked %d payouts %s", n, state),
		Actor:       middleware.GetOperatorID(ctx),
	})

	resp := &api.MarkPaidResponse{Success: true, Updated: n}
	resp.Warnings = s.publisher.Publish(ctx, outbox.PayoutsChanged{PayoutIDs: req.Msg.PayoutIDs, Reason: "marked " + state})
	return connect.NewResponse(resp), nil
}

func (s *DealService) ListAudit(ctx context.Context, req *connect.Request[api.ListAuditRequest]) (*connect.Response[api.ListAuditResponse], error) {
	if req.Msg.Offset < 0 || req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: offset and limit must not be negative", errInvalidRequest))
	}
	entries, err := s.store.ListAudit(ctx, storage.AuditFilter{
		EntityID:   req.Msg.EntityID,
		EntityType: req.Msg.EntityType,
		Query:      req.Msg.Query,
		Offset:     req.Msg.Offset,
		Limit:      req.Msg.Limit,
	})
	if err != nil {
		return nil, toConnectError("ListAudit", err)
	}
	return connect.NewResponse(&api.ListAuditResponse{Entries: toAPIAudit(entries)}), nil
}

// UpsertPartner writes a partner directory entry and drops it from the cache.
func (s *DealService) UpsertPartner(ctx context.Context, req *connect.Request[api.UpsertPartnerRequest]) (*connect.Response[api.UpsertPartnerResponse], error) {
	id := strings.TrimSpace(req.Msg.PartnerID)
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: partner_id is required", errInvalidRequest))
	}
	partner := &models.Partner{
		ID:    id,
		Name:  strings.TrimSpace(req.Msg.Name),
		Email: strings.TrimSpace(req.Msg.Email),
		Role:  strings.TrimSpace(req.Msg.Role),
	}
	if err := s.store.UpsertPartner(ctx, partner); err != nil {
		return nil, toConnectError("UpsertPartner", err)
	}
	if s.directory != nil {
		s.directory.Invalidate(id)
	}
	return connect.NewResponse(&api.UpsertPartnerResponse{Success: true}), nil
}

func (s *DealService) audit(ctx context.Context, entry *models.AuditEntry) {
	entry.CreatedAt = s.now().Unix()
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		slog.Warn("Failed to append audit entry", "action", entry.Action, "entity_id", entry.EntityID, "error", err)
	}
}
