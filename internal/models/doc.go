// Package models defines the core domain models for residual payouts.
//
// # Models
//
//   - Deal: one merchant (MID) arrangement for one payout category, carrying
//     the participant split table.
//   - Participant: one partner's share of a deal, embedded in the deal.
//   - Event: one source residual line for a merchant and month.
//   - Payout: one participant's allocation for one event.
//   - Adjustment: a proposed post-hoc split change with a
//     pending/confirmed/rejected lifecycle.
//   - AuditEntry: append-only change history.
//   - Partner: directory entry for an external partner identifier.
//
// # Identifiers
//
// Deals carry two identifiers. ID is the internal UUID that events reference.
// ShortID is the operator-facing form ("D-XXXXXXXX") that payouts and the
// external ledger reference. MIDs are opaque strings: leading zeros matter and
// they are never parsed as numbers.
//
// Monetary amounts and split percentages are shopspring decimals; timestamps
// are Unix seconds.
package models
