package vault

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	// ErrZeroAmount rejects zero-value deposits.
	ErrZeroAmount = errors.New("zero amount")
	// ErrReentrancy rejects a mutating call while another is in flight.
	ErrReentrancy = errors.New("reentrant call")
	// ErrTransferFailed reports a failed external effect.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrWrongAssetPath rejects the primary asset on the token entry points.
	ErrWrongAssetPath = errors.New("wrong asset path")
)

// CapExceededError reports a deposit whose prospective canonical total would
// exceed the global ceiling.
type CapExceededError struct {
	Attempted *uint256.Int // prospective total, canonical units
	Cap       *uint256.Int // ceiling, canonical units
}

func (e CapExceededError) Error() string {
	return fmt.Sprintf("bank cap exceeded: attempted total %s, cap %s",
		e.Attempted.Dec(), e.Cap.Dec())
}

// WithdrawalLimitError reports a single withdrawal above the per-transaction
// ceiling.
type WithdrawalLimitError struct {
	Requested *uint256.Int // native units
	Limit     *uint256.Int // native units
}

func (e WithdrawalLimitError) Error() string {
	return fmt.Sprintf("withdrawal limit exceeded: requested %s, limit %s",
		e.Requested.Dec(), e.Limit.Dec())
}
