// Package units converts amounts between asset-native precision and the
// ledger's canonical 6-decimal accounting unit.
//
// All conversions are integer floor divisions at fixed scales. Truncation is
// part of the accounting contract: amounts may be valued slightly below their
// true worth, which biases toward permitting deposits, never toward
// double-charging.
package units

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// CanonicalDecimals is the precision of the accounting unit.
	CanonicalDecimals = 6
	// OracleDecimals is the fixed-point precision of the price feed.
	OracleDecimals = 8
	// NativeDecimals is the precision of the primary asset.
	NativeDecimals = 18
	// MaxDecimals is the highest supported asset precision.
	MaxDecimals = 18
)

var (
	ErrUnsupportedPrecision = errors.New("unsupported asset precision")
	ErrValueOverflow        = errors.New("value overflows 256 bits")
)

// UnsupportedPrecisionError reports an asset precision outside 0..MaxDecimals.
type UnsupportedPrecisionError struct {
	Decimals uint8
}

func (e UnsupportedPrecisionError) Error() string {
	return fmt.Sprintf("unsupported asset precision %d (max %d)", e.Decimals, MaxDecimals)
}

func (e UnsupportedPrecisionError) Unwrap() error { return ErrUnsupportedPrecision }

var pow10tab = func() [NativeDecimals + 1]*uint256.Int {
	var tab [NativeDecimals + 1]*uint256.Int

	ten := uint256.NewInt(10)
	tab[0] = uint256.NewInt(1)

	for i := 1; i <= NativeDecimals; i++ {
		tab[i] = new(uint256.Int).Mul(tab[i-1], ten)
	}

	return tab
}()

func pow10(n uint8) *uint256.Int { return pow10tab[n] }

// ToCanonical rescales an amount from the asset's native precision to the
// canonical unit: scale up to an 18-decimal intermediate, then floor-divide
// down to 6 decimals. The 18-decimal detour matches the oracle convention and
// must not be simplified away.
func ToCanonical(amount *uint256.Int, decimals uint8) (*uint256.Int, error) {
	if decimals > MaxDecimals {
		return nil, UnsupportedPrecisionError{Decimals: decimals}
	}

	scaled, overflow := new(uint256.Int).MulOverflow(amount, pow10(NativeDecimals-decimals))
	if overflow {
		return nil, fmt.Errorf("scale to %d decimals: %w", NativeDecimals, ErrValueOverflow)
	}

	return scaled.Div(scaled, pow10(NativeDecimals-CanonicalDecimals)), nil
}

// NativeToCanonical values a primary-asset amount (18-decimal native units)
// in canonical units using an 8-decimal fixed-point price. The two truncating
// stages (divide by 10^18, then by 10^2) are applied separately; boundary
// behavior depends on that exact order.
func NativeToCanonical(amountWei, price *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(amountWei, price)
	if overflow {
		return nil, fmt.Errorf("amount times price: %w", ErrValueOverflow)
	}

	product.Div(product, pow10(NativeDecimals))

	return product.Div(product, pow10(OracleDecimals-CanonicalDecimals)), nil
}
