package amqp

import (
	"encoding/json"
	"fmt"

	"haushaltsbuch/internal/core"
)

// EncodeEvent renders ev as the JSON message body.
func EncodeEvent(ev core.LedgerEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses a message body and rejects events the worker could not
// act on.
func DecodeEvent(data []byte) (core.LedgerEvent, error) {
	var ev core.LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.LedgerEvent{}, err
	}
	switch ev.Kind {
	case core.EventEntryCreated, core.EventEntryUpdated, core.EventEntryDeleted, core.EventLedgerCleared:
	default:
		return core.LedgerEvent{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.Owner <= 0 {
		return core.LedgerEvent{}, fmt.Errorf("event without owner")
	}
	return ev, nil
}
