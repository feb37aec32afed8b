package core

import "time"

const (
	EventEntryCreated  EventKind = "entry.created"
	EventEntryUpdated  EventKind = "entry.updated"
	EventEntryDeleted  EventKind = "entry.deleted"
	EventLedgerCleared EventKind = "ledger.cleared"
)

type EventKind string

// LedgerEvent announces a change to one owner's ledger. Consumers re-read the
// ledger instead of trusting event payloads.
type LedgerEvent struct {
	Kind      EventKind `json:"kind"`
	Owner     int64     `json:"owner"`
	EntryID   int64     `json:"entry_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, owner, entryID int64) LedgerEvent {
	return LedgerEvent{Kind: kind, Owner: owner, EntryID: entryID, Timestamp: time.Now().UTC()}
}
