package vault

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/ferbarht/KipuBankV2/internal/ledger"
)

type EventKind string

const (
	EventDeposited      EventKind = "deposited"
	EventWithdrawn      EventKind = "withdrawn"
	EventTokenDeposited EventKind = "token_deposited"
	EventTokenWithdrawn EventKind = "token_withdrawn"
)

// Event records one successful operation. Emitted exactly once, after state
// mutation and the external effect have both succeeded.
type Event struct {
	Kind   EventKind
	Owner  ledger.Owner
	Asset  ledger.AssetID
	Amount *uint256.Int // base units of Asset
	At     time.Time
}

// Sink receives emitted events. A sink failure does not un-commit the
// operation it reports; the vault logs it and moves on.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// LogSink writes events to the default slog logger.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, ev Event) error {
	slog.Info("vault event",
		"kind", string(ev.Kind),
		"owner", string(ev.Owner),
		"asset", string(ev.Asset),
		"amount", ev.Amount.Dec(),
	)

	return nil
}

// MultiSink fans an event out to every sink, collecting errors.
type MultiSink []Sink

func (s MultiSink) Emit(ctx context.Context, ev Event) error {
	var errs []error

	for _, sink := range s {
		if err := sink.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
