// Package oracle adapts the external primary-asset price feed. The feed is
// untrusted input: a non-positive answer is a hard stop for the calling
// operation, never cached, never retried.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var ErrInvalidPrice = errors.New("invalid oracle price")

// InvalidPriceError reports a feed answer that is zero or negative.
type InvalidPriceError struct {
	Answer string
}

func (e InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid oracle price %s: answer must be positive", e.Answer)
}

func (e InvalidPriceError) Unwrap() error { return ErrInvalidPrice }

// Feed resolves the latest primary-asset price as a strictly positive
// 8-decimal fixed-point value.
type Feed interface {
	LatestPrimaryPrice(ctx context.Context) (*uint256.Int, error)
}

// StaticFeed serves a fixed price. Used in tests and local runs without an
// RPC endpoint.
type StaticFeed struct {
	Price *uint256.Int
}

func (f StaticFeed) LatestPrimaryPrice(_ context.Context) (*uint256.Int, error) {
	if f.Price == nil || f.Price.IsZero() {
		return nil, InvalidPriceError{Answer: "0"}
	}

	return f.Price.Clone(), nil
}
