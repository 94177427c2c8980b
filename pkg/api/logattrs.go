package api

import "log/slog"

// LogAttrs returns the attributes that identify what a message targets or
// produced. Request logging attaches them to the RPC log line.

func (r *SubmitAdjustmentRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("deal_id", r.DealID), slog.Int("participants", len(r.Participants))}
}

func (r *EditAdjustmentRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("group_id", r.GroupID), slog.Int("participants", len(r.Participants))}
}

func (r *ConfirmAdjustmentsRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("adjustments", len(r.IDs))}
}

func (r *RejectAdjustmentsRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("adjustments", len(r.IDs))}
}

func (r *AssignEventsRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("events", len(r.EventIDs))}
}

func (r *DealRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("deal_id", r.DealID)}
}

func (r *UpdateParticipantsRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("deal_id", r.DealID), slog.Int("participants", len(r.Participants))}
}

func (r *ChangeMIDRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("deal_id", r.DealID), slog.String("mid", r.MID)}
}

func (r *MarkPaidRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("payouts", len(r.PayoutIDs)), slog.Bool("paid", r.Paid)}
}

func (r *UpsertPartnerRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("partner_id", r.PartnerID)}
}

func (r *SyncRequest) LogAttrs() []slog.Attr {
	switch {
	case len(r.PayoutIDs) > 0:
		return []slog.Attr{slog.Int("payouts", len(r.PayoutIDs))}
	case r.MID != "":
		return []slog.Attr{slog.String("mid", r.MID)}
	}
	return []slog.Attr{slog.String("scope", "all")}
}

func (r *DeleteOrphansRequest) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("records", len(r.RecordIDs))}
}

func (r *AssignEventsResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("deal_short_id", r.DealShortID),
		slog.Int("payouts_created", r.PayoutsCreated),
		slog.Int("warnings", len(r.Warnings)),
	}
}

func (r *TransitionResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("confirmed", r.Confirmed),
		slog.Int("rejected", r.Rejected),
		slog.Int("skipped", r.Skipped),
		slog.Int("errors", len(r.Errors)),
	}
}

func (r *CascadeResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("warnings", len(r.Warnings))}
}

func (r *SyncResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("created", r.Created),
		slog.Int("updated", r.Updated),
		slog.Int("deleted", r.Deleted),
		slog.Int("orphans", len(r.Orphans)),
		slog.Int("errors", len(r.Errors)),
	}
}
