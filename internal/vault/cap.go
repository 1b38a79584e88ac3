package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ferbarht/KipuBankV2/internal/ledger"
	"github.com/ferbarht/KipuBankV2/internal/oracle"
	"github.com/ferbarht/KipuBankV2/internal/token"
	"github.com/ferbarht/KipuBankV2/internal/units"
)

// capGuard enforces the global deposit ceiling. The check is a pure
// precondition: it runs before any mutation, so a failure needs no rollback.
type capGuard struct {
	book     *ledger.Ledger
	feed     oracle.Feed
	decimals *token.DecimalsCache
	cap      *uint256.Int // canonical units
}

// checkDeposit values the prospective per-asset total in canonical units and
// compares it against the ceiling. The primary asset is priced through the
// feed; external assets are pegged 1:1 to the canonical unit (a stated
// simplification: no independent pricing for non-primary assets).
func (g *capGuard) checkDeposit(ctx context.Context, asset ledger.AssetID, amount *uint256.Int) error {
	prospective, overflow := new(uint256.Int).AddOverflow(g.book.TotalOf(asset), amount)
	if overflow {
		return fmt.Errorf("prospective total: %w", units.ErrValueOverflow)
	}

	var (
		canonical *uint256.Int
		err       error
	)

	if asset.IsNative() {
		price, perr := g.feed.LatestPrimaryPrice(ctx)
		if perr != nil {
			return fmt.Errorf("price feed: %w", perr)
		}

		canonical, err = units.NativeToCanonical(prospective, price)
	} else {
		dec, derr := g.decimals.DecimalsOf(ctx, asset)
		if derr != nil {
			return derr
		}

		canonical, err = units.ToCanonical(prospective, dec)
	}

	if err != nil {
		return fmt.Errorf("value prospective total: %w", err)
	}

	if canonical.Gt(g.cap) {
		return CapExceededError{Attempted: canonical, Cap: g.cap.Clone()}
	}

	return nil
}
