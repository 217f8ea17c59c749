package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"jeongsan/internal/core"
)

// Message kinds carried on the mirror queue.
const (
	KindSettlementSaved = "settlement.saved"
	KindRecordSaved     = "record.saved"
)

// Envelope wraps every event so a single queue can carry both kinds.
type Envelope struct {
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// SettlementSavedMessage mirrors the settlement document after a
// successful remote save.
type SettlementSavedMessage struct {
	Ledger  core.Ledger `json:"ledger"`
	SavedAt time.Time   `json:"savedAt"`
}

// RecordSavedMessage mirrors a monthly record after a snapshot save.
type RecordSavedMessage struct {
	Record core.MonthlyRecord `json:"record"`
}

func newEnvelope(kind string, payload any) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Envelope{Kind: kind, Timestamp: time.Now(), Payload: body}, nil
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("envelope missing kind")
	}
	return &env, nil
}

// DecodeSettlementSaved unpacks the payload of a settlement event.
func (e *Envelope) DecodeSettlementSaved() (*SettlementSavedMessage, error) {
	if e.Kind != KindSettlementSaved {
		return nil, fmt.Errorf("envelope kind %q is not %s", e.Kind, KindSettlementSaved)
	}
	var msg SettlementSavedMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeRecordSaved unpacks the payload of a record event.
func (e *Envelope) DecodeRecordSaved() (*RecordSavedMessage, error) {
	if e.Kind != KindRecordSaved {
		return nil, fmt.Errorf("envelope kind %q is not %s", e.Kind, KindRecordSaved)
	}
	var msg RecordSavedMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
