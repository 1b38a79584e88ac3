package journal

import (
	"context"
	"errors"
	"time"
)

var ErrMalformedAmount = errors.New("malformed amount")

// Entry is one successful vault operation in the append-only journal.
type Entry struct {
	ID        int64
	Kind      string
	Owner     string
	Asset     string
	Amount    string // base units, decimal string (fits NUMERIC(78,0))
	CreatedAt time.Time
}

type Journal interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, owner string, limit int) ([]Entry, error)
}
