package ledger

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

const (
	alice Owner = "0xa11ce"
	bob   Owner = "0xb0b"

	usdc AssetID = "0xusdc"
)

func amt(n uint64) *uint256.Int { return uint256.NewInt(n) }

// checkConservation verifies total[asset] == sum of balances over the given
// owners.
func checkConservation(t *testing.T, l *Ledger, asset AssetID, owners ...Owner) {
	t.Helper()

	sum := uint256.NewInt(0)
	for _, o := range owners {
		sum.Add(sum, l.BalanceOf(o, asset))
	}

	if total := l.TotalOf(asset); !total.Eq(sum) {
		t.Fatalf("conservation broken: total %s, sum of balances %s", total.Dec(), sum.Dec())
	}
}

func TestLedger_CreditDebit(t *testing.T) {
	t.Parallel()

	l := New()

	if err := l.Credit(alice, NativeAsset, amt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(bob, NativeAsset, amt(50)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	checkConservation(t, l, NativeAsset, alice, bob)

	if err := l.Debit(alice, NativeAsset, amt(30)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	checkConservation(t, l, NativeAsset, alice, bob)

	if got := l.BalanceOf(alice, NativeAsset); !got.Eq(amt(70)) {
		t.Fatalf("alice balance: want 70, got %s", got.Dec())
	}
	if got := l.TotalOf(NativeAsset); !got.Eq(amt(120)) {
		t.Fatalf("total: want 120, got %s", got.Dec())
	}

	c := l.CountersOf(alice, NativeAsset)
	if c.Deposits != 1 || c.Withdrawals != 1 {
		t.Fatalf("counters: want 1/1, got %d/%d", c.Deposits, c.Withdrawals)
	}
}

func TestLedger_AssetsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New()

	if err := l.Credit(alice, NativeAsset, amt(10)); err != nil {
		t.Fatalf("credit native: %v", err)
	}
	if err := l.Credit(alice, usdc, amt(20)); err != nil {
		t.Fatalf("credit usdc: %v", err)
	}

	if got := l.BalanceOf(alice, NativeAsset); !got.Eq(amt(10)) {
		t.Fatalf("native balance: want 10, got %s", got.Dec())
	}
	if got := l.BalanceOf(alice, usdc); !got.Eq(amt(20)) {
		t.Fatalf("usdc balance: want 20, got %s", got.Dec())
	}
	if got := l.TotalOf(usdc); !got.Eq(amt(20)) {
		t.Fatalf("usdc total: want 20, got %s", got.Dec())
	}
}

func TestLedger_DebitInsufficient(t *testing.T) {
	t.Parallel()

	l := New()

	if err := l.Credit(alice, usdc, amt(40)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := l.Debit(alice, usdc, amt(41))

	var balErr InsufficientBalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("want InsufficientBalanceError, got %v", err)
	}
	if !balErr.Requested.Eq(amt(41)) || !balErr.Available.Eq(amt(40)) {
		t.Fatalf("error fields: requested %s, available %s",
			balErr.Requested.Dec(), balErr.Available.Dec())
	}

	// Failed debit mutates nothing.
	if got := l.BalanceOf(alice, usdc); !got.Eq(amt(40)) {
		t.Fatalf("balance changed on failed debit: %s", got.Dec())
	}
	if got := l.TotalOf(usdc); !got.Eq(amt(40)) {
		t.Fatalf("total changed on failed debit: %s", got.Dec())
	}
	if c := l.CountersOf(alice, usdc); c.Withdrawals != 0 {
		t.Fatalf("withdrawal counter bumped on failed debit: %d", c.Withdrawals)
	}
}

func TestLedger_DebitUnknownOwner(t *testing.T) {
	t.Parallel()

	l := New()

	err := l.Debit(bob, NativeAsset, amt(1))

	var balErr InsufficientBalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("want InsufficientBalanceError, got %v", err)
	}
	if !balErr.Available.IsZero() {
		t.Fatalf("unknown owner should read zero, got %s", balErr.Available.Dec())
	}
}

func TestLedger_UndoDebit(t *testing.T) {
	t.Parallel()

	l := New()

	if err := l.Credit(alice, NativeAsset, amt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(alice, NativeAsset, amt(60)); err != nil {
		t.Fatalf("debit: %v", err)
	}

	l.UndoDebit(alice, NativeAsset, amt(60))

	if got := l.BalanceOf(alice, NativeAsset); !got.Eq(amt(100)) {
		t.Fatalf("balance not restored: %s", got.Dec())
	}
	if got := l.TotalOf(NativeAsset); !got.Eq(amt(100)) {
		t.Fatalf("total not restored: %s", got.Dec())
	}
	if c := l.CountersOf(alice, NativeAsset); c.Withdrawals != 0 {
		t.Fatalf("withdrawal counter not rolled back: %d", c.Withdrawals)
	}
	checkConservation(t, l, NativeAsset, alice)
}

func TestLedger_CreditOverflow(t *testing.T) {
	t.Parallel()

	l := New()
	max := new(uint256.Int).Not(uint256.NewInt(0))

	if err := l.Credit(alice, NativeAsset, max); err != nil {
		t.Fatalf("credit max: %v", err)
	}

	err := l.Credit(alice, NativeAsset, amt(1))
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("want ErrBalanceOverflow, got %v", err)
	}

	// Rejected credit leaves balance and counters untouched.
	if got := l.BalanceOf(alice, NativeAsset); !got.Eq(max) {
		t.Fatalf("balance changed on failed credit")
	}
	if c := l.CountersOf(alice, NativeAsset); c.Deposits != 1 {
		t.Fatalf("deposit counter bumped on failed credit: %d", c.Deposits)
	}
}

func TestLedger_TotalOverflowAcrossOwners(t *testing.T) {
	t.Parallel()

	l := New()
	max := new(uint256.Int).Not(uint256.NewInt(0))

	if err := l.Credit(alice, NativeAsset, max); err != nil {
		t.Fatalf("credit max: %v", err)
	}

	// Bob's balance would fit, but the asset total would not.
	err := l.Credit(bob, NativeAsset, amt(1))
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("want ErrBalanceOverflow, got %v", err)
	}
	if got := l.BalanceOf(bob, NativeAsset); !got.IsZero() {
		t.Fatalf("bob credited despite total overflow: %s", got.Dec())
	}
	checkConservation(t, l, NativeAsset, alice, bob)
}

func TestLedger_NativeSentinel(t *testing.T) {
	t.Parallel()

	if !NativeAsset.IsNative() {
		t.Fatal("NativeAsset must report IsNative")
	}
	if usdc.IsNative() {
		t.Fatal("external asset must not report IsNative")
	}
}
