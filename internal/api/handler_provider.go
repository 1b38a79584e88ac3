package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/ferbarht/KipuBankV2/internal/ledger"
	"github.com/ferbarht/KipuBankV2/internal/oracle"
	"github.com/ferbarht/KipuBankV2/internal/repos/journal"
	"github.com/ferbarht/KipuBankV2/internal/units"
	"github.com/ferbarht/KipuBankV2/internal/vault"
)

// HandlerProvider wraps the vault and the operation journal and exposes HTTP
// handlers.
type HandlerProvider struct {
	vlt  *vault.Vault
	jrnl journal.Journal
}

// NewHandler returns a new handler provider. jrnl may be nil; the operations
// endpoint then reports the journal as unavailable.
func NewHandler(vlt *vault.Vault, jrnl journal.Journal) *HandlerProvider {
	return &HandlerProvider{vlt: vlt, jrnl: jrnl}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseOwnerFromPath(r *http.Request) (ledger.Owner, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "owner"))
	if raw == "" {
		return "", fmt.Errorf("missing owner")
	}

	return ledger.Owner(raw), nil
}

func parseAssetFromPath(r *http.Request) (ledger.AssetID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "asset"))
	if raw == "" {
		return "", fmt.Errorf("missing asset")
	}

	return ledger.AssetID(raw), nil
}

func assetFromQuery(r *http.Request) ledger.AssetID {
	raw := strings.TrimSpace(r.URL.Query().Get("asset"))
	if raw == "" {
		return ledger.NativeAsset
	}

	return ledger.AssetID(raw)
}

type amountRequest struct {
	// Amount is a human-readable decimal in whole asset units, e.g. "1.5".
	Amount string `json:"amount"`
	// AmountBase is a raw base-unit integer, e.g. "1500000000000000000".
	// Takes precedence over Amount when both are set.
	AmountBase string `json:"amountBase"`
}

func decodeAmountRequest(w http.ResponseWriter, r *http.Request) (amountRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	var req amountRequest

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return req, fmt.Errorf("empty body")
		}

		return req, fmt.Errorf("invalid JSON")
	}

	return req, nil
}

// parseAmount converts the request into base units. Human-readable amounts
// are shifted by the asset's precision and must not carry more fractional
// digits than the asset supports.
func parseAmount(req amountRequest, decimals uint8) (*uint256.Int, error) {
	if base := strings.TrimSpace(req.AmountBase); base != "" {
		n, err := uint256.FromDecimal(base)
		if err != nil {
			return nil, fmt.Errorf("invalid amountBase: %w", err)
		}

		return n, nil
	}

	raw := strings.TrimSpace(req.Amount)
	if raw == "" {
		return nil, fmt.Errorf("amount required")
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative")
	}

	shifted := decimal.NewFromBigInt(d.Coefficient(), d.Exponent()+int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount has more than %d decimal places", decimals)
	}

	n, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount out of range")
	}

	return n, nil
}

// formatUnits renders a base-unit amount as a decimal string in whole units.
func formatUnits(n *uint256.Int, decimals uint8) string {
	return decimal.NewFromBigInt(n.ToBig(), -int32(decimals)).String()
}

// vaultErrStatus maps the engine's error taxonomy onto HTTP statuses.
func vaultErrStatus(err error) (int, string) {
	var (
		capErr   vault.CapExceededError
		limitErr vault.WithdrawalLimitError
		balErr   ledger.InsufficientBalanceError
	)

	switch {
	case errors.Is(err, vault.ErrZeroAmount):
		return http.StatusBadRequest, "amount must be positive"
	case errors.Is(err, vault.ErrWrongAssetPath):
		return http.StatusBadRequest, "wrong asset path"
	case errors.As(err, &capErr):
		return http.StatusConflict, capErr.Error()
	case errors.As(err, &limitErr):
		return http.StatusConflict, limitErr.Error()
	case errors.As(err, &balErr):
		return http.StatusConflict, balErr.Error()
	case errors.Is(err, vault.ErrReentrancy):
		return http.StatusLocked, "another operation is in flight"
	case errors.Is(err, units.ErrUnsupportedPrecision):
		return http.StatusUnprocessableEntity, "unsupported asset precision"
	case errors.Is(err, oracle.ErrInvalidPrice):
		return http.StatusBadGateway, "price feed unavailable"
	case errors.Is(err, vault.ErrTransferFailed):
		return http.StatusBadGateway, "transfer failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *HandlerProvider) assetDecimals(r *http.Request, asset ledger.AssetID) (uint8, error) {
	if asset.IsNative() {
		return units.NativeDecimals, nil
	}

	return h.vlt.DecimalsOf(r.Context(), asset)
}

// --- Handlers ---

// GetBalanceHandler handles GET /vault/{owner}/balance?asset=<id>
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwnerFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner in path")
		return
	}

	asset := assetFromQuery(r)
	balance := h.vlt.BalanceOf(owner, asset)
	counters := h.vlt.CountersOf(owner, asset)

	resp := map[string]any{
		"owner":       string(owner),
		"asset":       string(asset),
		"balanceBase": balance.Dec(),
		"deposits":    counters.Deposits,
		"withdrawals": counters.Withdrawals,
	}

	// Formatted balance is best-effort: an unresolvable precision still
	// leaves the raw figure usable.
	if dec, derr := h.assetDecimals(r, asset); derr == nil {
		resp["balance"] = formatUnits(balance, dec)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetTotalHandler handles GET /vault/total?asset=<id>
func (h *HandlerProvider) GetTotalHandler(w http.ResponseWriter, r *http.Request) {
	asset := assetFromQuery(r)
	total := h.vlt.TotalOf(asset)

	resp := map[string]any{
		"asset":     string(asset),
		"totalBase": total.Dec(),
	}

	if dec, derr := h.assetDecimals(r, asset); derr == nil {
		resp["total"] = formatUnits(total, dec)
	}

	writeJSON(w, http.StatusOK, resp)
}

// DepositNativeHandler handles POST /vault/{owner}/deposit
func (h *HandlerProvider) DepositNativeHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwnerFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner in path")
		return
	}

	req, err := decodeAmountRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := parseAmount(req, units.NativeDecimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.vlt.DepositNative(r.Context(), owner, amount)
	if err != nil {
		status, msg := vaultErrStatus(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WithdrawNativeHandler handles POST /vault/{owner}/withdraw
func (h *HandlerProvider) WithdrawNativeHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwnerFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner in path")
		return
	}

	req, err := decodeAmountRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := parseAmount(req, units.NativeDecimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.vlt.WithdrawNative(r.Context(), owner, amount)
	if err != nil {
		status, msg := vaultErrStatus(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DepositTokenHandler handles POST /vault/{owner}/tokens/{asset}/deposit
func (h *HandlerProvider) DepositTokenHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwnerFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner in path")
		return
	}

	asset, err := parseAssetFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset in path")
		return
	}

	req, err := decodeAmountRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := h.parseTokenAmount(r, req, asset)
	if err != nil {
		status, msg := tokenAmountErrStatus(err)
		writeError(w, status, msg)
		return
	}

	err = h.vlt.DepositToken(r.Context(), owner, asset, amount)
	if err != nil {
		status, msg := vaultErrStatus(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WithdrawTokenHandler handles POST /vault/{owner}/tokens/{asset}/withdraw
func (h *HandlerProvider) WithdrawTokenHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwnerFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner in path")
		return
	}

	asset, err := parseAssetFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset in path")
		return
	}

	req, err := decodeAmountRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := h.parseTokenAmount(r, req, asset)
	if err != nil {
		status, msg := tokenAmountErrStatus(err)
		writeError(w, status, msg)
		return
	}

	err = h.vlt.WithdrawToken(r.Context(), owner, asset, amount)
	if err != nil {
		status, msg := vaultErrStatus(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseTokenAmount resolves a token amount; a human-readable amount needs the
// asset's precision, a raw amountBase does not.
func (h *HandlerProvider) parseTokenAmount(r *http.Request, req amountRequest, asset ledger.AssetID) (*uint256.Int, error) {
	if strings.TrimSpace(req.AmountBase) != "" {
		return parseAmount(req, 0)
	}

	dec, err := h.vlt.DecimalsOf(r.Context(), asset)
	if err != nil {
		return nil, err
	}

	return parseAmount(req, dec)
}

func tokenAmountErrStatus(err error) (int, string) {
	if errors.Is(err, units.ErrUnsupportedPrecision) {
		return http.StatusUnprocessableEntity, "unsupported asset precision"
	}

	return http.StatusBadRequest, err.Error()
}

// ListOperationsHandler handles GET /vault/{owner}/operations?limit=n
func (h *HandlerProvider) ListOperationsHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwnerFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner in path")
		return
	}

	if h.jrnl == nil {
		writeError(w, http.StatusServiceUnavailable, "operation journal unavailable")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	entries, err := h.jrnl.List(r.Context(), string(owner), limit)
	if err != nil {
		slog.Error("list operations", "owner", string(owner), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type opResponse struct {
		ID        int64  `json:"id"`
		Kind      string `json:"kind"`
		Asset     string `json:"asset"`
		Amount    string `json:"amountBase"`
		CreatedAt string `json:"createdAt"`
	}

	ops := make([]opResponse, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, opResponse{
			ID:        e.ID,
			Kind:      e.Kind,
			Asset:     e.Asset,
			Amount:    e.Amount,
			CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner":      string(owner),
		"operations": ops,
	})
}
