// Package ledger holds the custodial balance book: per-owner, per-asset
// balances in native precision, per-asset running totals, and informational
// operation counters. It is the sole mutator of balance state; callers reach
// it only through Credit, Debit and UndoDebit.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// Owner is an opaque address-like account identifier.
type Owner string

// AssetID identifies an asset type. The zero-address sentinel denotes the
// primary (native) asset; every other value is an external fungible asset.
type AssetID string

// NativeAsset is the reserved identifier for the primary asset.
const NativeAsset AssetID = "0x0000000000000000000000000000000000000000"

// IsNative reports whether the id is the primary-asset sentinel.
func (a AssetID) IsNative() bool { return a == NativeAsset }

// Counters are per-(owner,asset) operation tallies. Monotonic, informational
// only.
type Counters struct {
	Deposits    uint64
	Withdrawals uint64
}

var ErrBalanceOverflow = errors.New("balance overflow")

// InsufficientBalanceError reports a debit larger than the available balance.
type InsufficientBalanceError struct {
	Requested *uint256.Int
	Available *uint256.Int
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s",
		e.Requested.Dec(), e.Available.Dec())
}

type key struct {
	owner Owner
	asset AssetID
}

// Ledger is the in-memory balance store. Mutations are serialized by the
// vault's latch; the internal lock only makes unserialized readers safe.
type Ledger struct {
	mu       sync.RWMutex
	balances map[key]*uint256.Int
	totals   map[AssetID]*uint256.Int
	counters map[key]Counters
}

func New() *Ledger {
	return &Ledger{
		balances: make(map[key]*uint256.Int),
		totals:   make(map[AssetID]*uint256.Int),
		counters: make(map[key]Counters),
	}
}

// Credit adds amount to the owner's balance and the asset total and bumps the
// deposit counter. The three updates commit together or not at all. Credit
// performs no business validation; the caller must already have checked the
// cap and rejected zero amounts.
func (l *Ledger) Credit(owner Owner, asset AssetID, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{owner: owner, asset: asset}

	newBalance, overflow := new(uint256.Int).AddOverflow(l.balance(k), amount)
	if overflow {
		return fmt.Errorf("credit %s/%s: %w", owner, asset, ErrBalanceOverflow)
	}

	newTotal, overflow := new(uint256.Int).AddOverflow(l.total(asset), amount)
	if overflow {
		return fmt.Errorf("credit total %s: %w", asset, ErrBalanceOverflow)
	}

	l.balances[k] = newBalance
	l.totals[asset] = newTotal

	c := l.counters[k]
	c.Deposits++
	l.counters[k] = c

	return nil
}

// Debit removes amount from the owner's balance and the asset total and bumps
// the withdrawal counter. A debit exceeding the balance mutates nothing.
func (l *Ledger) Debit(owner Owner, asset AssetID, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{owner: owner, asset: asset}
	balance := l.balance(k)

	if amount.Gt(balance) {
		return InsufficientBalanceError{
			Requested: amount.Clone(),
			Available: balance.Clone(),
		}
	}

	l.balances[k] = new(uint256.Int).Sub(balance, amount)
	l.totals[asset] = new(uint256.Int).Sub(l.total(asset), amount)

	c := l.counters[k]
	c.Withdrawals++
	l.counters[k] = c

	return nil
}

// UndoDebit reverses a just-applied Debit after the matching external effect
// failed: balance and total are restored and the withdrawal counter rolled
// back, so the aborted operation leaves no trace.
func (l *Ledger) UndoDebit(owner Owner, asset AssetID, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{owner: owner, asset: asset}

	// Cannot overflow: UndoDebit only ever restores what Debit removed.
	l.balances[k] = new(uint256.Int).Add(l.balance(k), amount)
	l.totals[asset] = new(uint256.Int).Add(l.total(asset), amount)

	c := l.counters[k]
	if c.Withdrawals > 0 {
		c.Withdrawals--
	}
	l.counters[k] = c
}

// BalanceOf returns a copy of the owner's balance in the asset's native
// precision. Unknown pairs read as zero.
func (l *Ledger) BalanceOf(owner Owner, asset AssetID) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balance(key{owner: owner, asset: asset}).Clone()
}

// TotalOf returns a copy of the asset's aggregate held balance.
func (l *Ledger) TotalOf(asset AssetID) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.total(asset).Clone()
}

// CountersOf returns the owner's operation tallies for the asset.
func (l *Ledger) CountersOf(owner Owner, asset AssetID) Counters {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.counters[key{owner: owner, asset: asset}]
}

func (l *Ledger) balance(k key) *uint256.Int {
	if b, ok := l.balances[k]; ok {
		return b
	}

	return uint256.NewInt(0)
}

func (l *Ledger) total(asset AssetID) *uint256.Int {
	if t, ok := l.totals[asset]; ok {
		return t
	}

	return uint256.NewInt(0)
}
