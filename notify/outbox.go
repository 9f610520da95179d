package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/wansing/editorial/core"
)

// An Outbox stores encoded events. sqldb.OutboxDB is an Outbox.
type Outbox interface {
	Insert(ctx context.Context, topic string, payload []byte, at time.Time) error
}

// Format is the encoding of outbox payloads.
type Format string

const (
	JSON Format = "json"
	CBOR Format = "cbor"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", JSON:
		return JSON, nil
	case CBOR:
		return CBOR, nil
	}
	return "", fmt.Errorf("unknown outbox format: %s", s)
}

// Core deterministic encoding, so equal events yield equal payloads.
var cborMode cbor.EncMode

func init() {
	var err error
	if cborMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("notify: cbor encoder: " + err.Error())
	}
}

// Encode encodes an event in the format. CBOR uses the json field names.
func (f Format) Encode(event core.Event) ([]byte, error) {
	if f == CBOR {
		return cborMode.Marshal(event)
	}
	return json.Marshal(event)
}

// OutboxSender encodes events and writes them into an outbox, from where an external mailer picks them up.
type OutboxSender struct {
	Outbox Outbox
	Format Format // empty means JSON
	Now    func() time.Time
}

func (s OutboxSender) Send(ctx context.Context, event core.Event) error {
	payload, err := s.Format.Encode(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Topic(), err)
	}
	var now = time.Now
	if s.Now != nil {
		now = s.Now
	}
	if err := s.Outbox.Insert(ctx, event.Topic(), payload, now()); err != nil {
		return fmt.Errorf("inserting %s event into outbox: %w", event.Topic(), err)
	}
	return nil
}
