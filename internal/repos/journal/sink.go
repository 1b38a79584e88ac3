package journal

import (
	"context"
	"fmt"

	"github.com/ferbarht/KipuBankV2/internal/vault"
)

// Sink adapts the journal into a vault event sink: every emitted event
// becomes one appended entry.
type Sink struct {
	j Journal
}

func NewSink(j Journal) Sink {
	return Sink{j: j}
}

func (s Sink) Emit(ctx context.Context, ev vault.Event) error {
	err := s.j.Insert(ctx, Entry{
		Kind:   string(ev.Kind),
		Owner:  string(ev.Owner),
		Asset:  string(ev.Asset),
		Amount: ev.Amount.Dec(),
	})
	if err != nil {
		return fmt.Errorf("journal event: %w", err)
	}

	return nil
}
