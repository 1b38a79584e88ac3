// Package vault is the custodial ledger façade: four public operations
// (deposit/withdraw × native/token), each a short-lived pipeline
// enter → validate → cap-check → mutate → external effect → emit → exit.
// A single latch makes every mutating call mutually exclusive; the first
// failing stage aborts the rest with no partial ledger mutation.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/ferbarht/KipuBankV2/internal/gateway"
	"github.com/ferbarht/KipuBankV2/internal/ledger"
	"github.com/ferbarht/KipuBankV2/internal/oracle"
	"github.com/ferbarht/KipuBankV2/internal/token"
)

// Config is fixed at construction and never mutated.
type Config struct {
	// WithdrawLimitWei is the per-transaction withdrawal ceiling, native units.
	WithdrawLimitWei *uint256.Int
	// BankCapCanonical is the global deposit ceiling, canonical units.
	BankCapCanonical *uint256.Int
	// InitialDeposit optionally seeds the vault through the regular guarded
	// native-deposit path.
	InitialDeposit *InitialDeposit
}

type InitialDeposit struct {
	Owner     ledger.Owner
	AmountWei *uint256.Int
}

// Vault composes the ledger, cap guard, latch, transfer gateway and event
// sink into the public operation set.
type Vault struct {
	cfg   Config
	guard reentrancyGuard
	book  *ledger.Ledger
	caps  capGuard
	mover gateway.Mover
	sink  Sink
	now   func() time.Time
}

func New(cfg Config, feed oracle.Feed, meta token.MetadataProvider, mover gateway.Mover, sink Sink) (*Vault, error) {
	if cfg.WithdrawLimitWei == nil || cfg.WithdrawLimitWei.IsZero() {
		return nil, fmt.Errorf("withdraw limit must be positive")
	}
	if cfg.BankCapCanonical == nil || cfg.BankCapCanonical.IsZero() {
		return nil, fmt.Errorf("bank cap must be positive")
	}

	book := ledger.New()

	v := &Vault{
		cfg:   cfg,
		book:  book,
		mover: mover,
		sink:  sink,
		now:   time.Now,
	}
	v.caps = capGuard{
		book:     book,
		feed:     feed,
		decimals: token.NewDecimalsCache(meta),
		cap:      cfg.BankCapCanonical.Clone(),
	}

	if cfg.InitialDeposit != nil {
		err := v.DepositNative(context.Background(), cfg.InitialDeposit.Owner, cfg.InitialDeposit.AmountWei)
		if err != nil {
			return nil, fmt.Errorf("initial deposit: %w", err)
		}
	}

	return v, nil
}

// DepositNative records primary-asset value received into custody:
//
// 1) Reject zero amounts.
// 2) Cap-check the prospective total at the current oracle price.
// 3) Credit balance, total and deposit counter together.
// 4) Emit Deposited.
func (v *Vault) DepositNative(ctx context.Context, owner ledger.Owner, amountWei *uint256.Int) error {
	if err := v.guard.enter(); err != nil {
		return err
	}
	defer v.guard.exit()

	if amountWei == nil || amountWei.IsZero() {
		return ErrZeroAmount
	}

	if err := v.caps.checkDeposit(ctx, ledger.NativeAsset, amountWei); err != nil {
		return fmt.Errorf("cap check: %w", err)
	}

	if err := v.book.Credit(owner, ledger.NativeAsset, amountWei); err != nil {
		return fmt.Errorf("credit: %w", err)
	}

	v.emit(ctx, EventDeposited, owner, ledger.NativeAsset, amountWei)

	return nil
}

// WithdrawNative releases primary-asset value to the owner:
//
// 1) Enforce the per-transaction ceiling.
// 2) Debit balance, total and withdrawal counter together.
// 3) Order the native send; a failed send re-credits the debit before the
//    error is reported, so mutation and effect commit as a unit.
// 4) Emit Withdrawn.
func (v *Vault) WithdrawNative(ctx context.Context, owner ledger.Owner, amountWei *uint256.Int) error {
	if err := v.guard.enter(); err != nil {
		return err
	}
	defer v.guard.exit()

	if amountWei == nil {
		amountWei = uint256.NewInt(0)
	}

	if amountWei.Gt(v.cfg.WithdrawLimitWei) {
		return WithdrawalLimitError{
			Requested: amountWei.Clone(),
			Limit:     v.cfg.WithdrawLimitWei.Clone(),
		}
	}

	if err := v.book.Debit(owner, ledger.NativeAsset, amountWei); err != nil {
		return fmt.Errorf("debit: %w", err)
	}

	if err := v.mover.SendNative(ctx, owner, amountWei); err != nil {
		v.book.UndoDebit(owner, ledger.NativeAsset, amountWei)

		return fmt.Errorf("send native: %w", errors.Join(ErrTransferFailed, err))
	}

	v.emit(ctx, EventWithdrawn, owner, ledger.NativeAsset, amountWei)

	return nil
}

// DepositToken pulls an external asset into custody:
//
// 1) Reject the primary asset on this path, and zero amounts.
// 2) Cap-check the prospective total at the 1:1 canonical peg.
// 3) Pull funds via the custody gateway (before crediting — a failed pull
//    leaves nothing to unwind).
// 4) Credit, emit TokenDeposited.
func (v *Vault) DepositToken(ctx context.Context, owner ledger.Owner, asset ledger.AssetID, amount *uint256.Int) error {
	if err := v.guard.enter(); err != nil {
		return err
	}
	defer v.guard.exit()

	if asset.IsNative() {
		return fmt.Errorf("%w: use the native deposit path", ErrWrongAssetPath)
	}

	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}

	if err := v.caps.checkDeposit(ctx, asset, amount); err != nil {
		return fmt.Errorf("cap check: %w", err)
	}

	if err := v.mover.PullToken(ctx, owner, asset, amount); err != nil {
		return fmt.Errorf("pull token: %w", errors.Join(ErrTransferFailed, err))
	}

	if err := v.book.Credit(owner, asset, amount); err != nil {
		return fmt.Errorf("credit: %w", err)
	}

	v.emit(ctx, EventTokenDeposited, owner, asset, amount)

	return nil
}

// WithdrawToken releases an external asset from custody: debit first, then
// push via the gateway; a failed push re-credits the debit before the error
// is reported. Emits TokenWithdrawn.
func (v *Vault) WithdrawToken(ctx context.Context, owner ledger.Owner, asset ledger.AssetID, amount *uint256.Int) error {
	if err := v.guard.enter(); err != nil {
		return err
	}
	defer v.guard.exit()

	if asset.IsNative() {
		return fmt.Errorf("%w: use the native withdraw path", ErrWrongAssetPath)
	}

	if amount == nil {
		amount = uint256.NewInt(0)
	}

	if err := v.book.Debit(owner, asset, amount); err != nil {
		return fmt.Errorf("debit: %w", err)
	}

	if err := v.mover.PushToken(ctx, owner, asset, amount); err != nil {
		v.book.UndoDebit(owner, asset, amount)

		return fmt.Errorf("push token: %w", errors.Join(ErrTransferFailed, err))
	}

	v.emit(ctx, EventTokenWithdrawn, owner, asset, amount)

	return nil
}

// BalanceOf returns the owner's balance in the asset's native precision.
// Read-only; not serialized by the latch.
func (v *Vault) BalanceOf(owner ledger.Owner, asset ledger.AssetID) *uint256.Int {
	return v.book.BalanceOf(owner, asset)
}

// TotalOf returns the aggregate held balance for the asset.
func (v *Vault) TotalOf(asset ledger.AssetID) *uint256.Int {
	return v.book.TotalOf(asset)
}

// CountersOf returns the owner's deposit/withdrawal tallies for the asset.
func (v *Vault) CountersOf(owner ledger.Owner, asset ledger.AssetID) ledger.Counters {
	return v.book.CountersOf(owner, asset)
}

// DecimalsOf resolves (and caches) an external asset's native precision.
func (v *Vault) DecimalsOf(ctx context.Context, asset ledger.AssetID) (uint8, error) {
	return v.caps.decimals.DecimalsOf(ctx, asset)
}

func (v *Vault) emit(ctx context.Context, kind EventKind, owner ledger.Owner, asset ledger.AssetID, amount *uint256.Int) {
	if v.sink == nil {
		return
	}

	ev := Event{
		Kind:   kind,
		Owner:  owner,
		Asset:  asset,
		Amount: amount.Clone(),
		At:     v.now(),
	}

	if err := v.sink.Emit(ctx, ev); err != nil {
		// The operation is already committed; a sink failure only loses the
		// notification, not the state.
		slog.Error("emit event", "kind", string(kind), "error", err)
	}
}
