package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"github.com/ferbarht/KipuBankV2/internal/ledger"
	"github.com/ferbarht/KipuBankV2/internal/oracle"
	"github.com/ferbarht/KipuBankV2/internal/vault"
)

type testMeta struct{}

func (testMeta) DecimalsOf(_ context.Context, asset ledger.AssetID) (uint8, error) {
	if asset == "0xusdc" {
		return 6, nil
	}

	return 0, errors.New("unknown asset")
}

type noopMover struct{}

func (noopMover) SendNative(context.Context, ledger.Owner, *uint256.Int) error { return nil }
func (noopMover) PullToken(context.Context, ledger.Owner, ledger.AssetID, *uint256.Int) error {
	return nil
}
func (noopMover) PushToken(context.Context, ledger.Owner, ledger.AssetID, *uint256.Int) error {
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	price, _ := uint256.FromDecimal("200000000000")        // $2000
	bankCap, _ := uint256.FromDecimal("50000000000")       // $50,000
	limit, _ := uint256.FromDecimal("1000000000000000000") // 1 native unit

	vlt, err := vault.New(vault.Config{
		WithdrawLimitWei: limit,
		BankCapCanonical: bankCap,
	}, oracle.StaticFeed{Price: price}, testMeta{}, noopMover{}, nil)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	srv := httptest.NewServer(NewRouter(NewHandler(vlt, nil)))
	t.Cleanup(srv.Close)

	return srv
}

func postJSON(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)

	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)

	return resp.StatusCode, out
}

func TestDepositAndBalanceFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	// Human-readable amount: 1.5 native units.
	code, _ := postJSON(t, srv.URL+"/vault/0xa11ce/deposit", `{"amount":"1.5"}`)
	if code != http.StatusOK {
		t.Fatalf("deposit: want 200, got %d", code)
	}

	code, body := getJSON(t, srv.URL+"/vault/0xa11ce/balance")
	if code != http.StatusOK {
		t.Fatalf("balance: want 200, got %d", code)
	}
	if body["balanceBase"] != "1500000000000000000" {
		t.Fatalf("balanceBase: %v", body["balanceBase"])
	}
	if body["balance"] != "1.5" {
		t.Fatalf("formatted balance: %v", body["balance"])
	}
	if body["deposits"] != float64(1) {
		t.Fatalf("deposits counter: %v", body["deposits"])
	}

	code, body = getJSON(t, srv.URL+"/vault/total")
	if code != http.StatusOK {
		t.Fatalf("total: want 200, got %d", code)
	}
	if body["totalBase"] != "1500000000000000000" {
		t.Fatalf("totalBase: %v", body["totalBase"])
	}
}

func TestDeposit_BadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty_body", body: ""},
		{name: "unknown_field", body: `{"amount":"1","bogus":true}`},
		{name: "missing_amount", body: `{}`},
		{name: "negative_amount", body: `{"amount":"-1"}`},
		{name: "too_many_decimals", body: `{"amount":"0.0000000000000000001"}`},
		{name: "zero_amount", body: `{"amount":"0"}`},
		{name: "non_numeric_base", body: `{"amountBase":"abc"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			code, _ := postJSON(t, srv.URL+"/vault/0xa11ce/deposit", tc.body)
			if code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d", code)
			}
		})
	}
}

func TestDeposit_CapExceeded(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	// 26 native units at $2000 exceed the $50,000 cap.
	code, body := postJSON(t, srv.URL+"/vault/0xa11ce/deposit", `{"amount":"26"}`)
	if code != http.StatusConflict {
		t.Fatalf("want 409, got %d (%v)", code, body)
	}
}

func TestWithdraw_Statuses(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	code, _ := postJSON(t, srv.URL+"/vault/0xa11ce/deposit", `{"amount":"1"}`)
	if code != http.StatusOK {
		t.Fatalf("seed deposit: got %d", code)
	}

	// Per-transaction limit is 1 native unit.
	code, _ = postJSON(t, srv.URL+"/vault/0xa11ce/withdraw", `{"amount":"2"}`)
	if code != http.StatusConflict {
		t.Fatalf("over limit: want 409, got %d", code)
	}

	// More than the balance but within the limit.
	code, _ = postJSON(t, srv.URL+"/vault/0xb0b/withdraw", `{"amount":"1"}`)
	if code != http.StatusConflict {
		t.Fatalf("insufficient: want 409, got %d", code)
	}

	code, _ = postJSON(t, srv.URL+"/vault/0xa11ce/withdraw", `{"amount":"0.25"}`)
	if code != http.StatusOK {
		t.Fatalf("withdraw: want 200, got %d", code)
	}
}

func TestTokenRoutes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	// 2.5 USDC, parsed with the asset's 6 decimals.
	code, _ := postJSON(t, srv.URL+"/vault/0xa11ce/tokens/0xusdc/deposit", `{"amount":"2.5"}`)
	if code != http.StatusOK {
		t.Fatalf("token deposit: want 200, got %d", code)
	}

	code, body := getJSON(t, srv.URL+"/vault/0xa11ce/balance?asset=0xusdc")
	if code != http.StatusOK {
		t.Fatalf("token balance: want 200, got %d", code)
	}
	if body["balanceBase"] != "2500000" {
		t.Fatalf("token balanceBase: %v", body["balanceBase"])
	}

	code, _ = postJSON(t, srv.URL+"/vault/0xa11ce/tokens/0xusdc/withdraw", `{"amountBase":"2500000"}`)
	if code != http.StatusOK {
		t.Fatalf("token withdraw: want 200, got %d", code)
	}

	// Unknown asset precision cannot be resolved.
	code, _ = postJSON(t, srv.URL+"/vault/0xa11ce/tokens/0xmystery/deposit", `{"amount":"1"}`)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown asset: want 422, got %d", code)
	}

	// Native sentinel on the token path.
	code, _ = postJSON(t, srv.URL+"/vault/0xa11ce/tokens/"+string(ledger.NativeAsset)+"/deposit", `{"amountBase":"1"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("native on token path: want 400, got %d", code)
	}
}

func TestOperations_WithoutJournal(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	code, _ := getJSON(t, srv.URL+"/vault/0xa11ce/operations")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	code, body := getJSON(t, srv.URL+"/healthz")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: %d %v", code, body)
	}
}
