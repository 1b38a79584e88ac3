// Package gateway submits transfer orders to the external custody service
// that executes the actual movement of value. Execution mechanics are outside
// the accounting core; the gateway only reports all-or-nothing success.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/ferbarht/KipuBankV2/internal/ledger"
)

// Mover executes external value movement. Every call is all-or-nothing: an
// error means no value moved.
type Mover interface {
	// SendNative releases primary-asset value from custody to the recipient.
	SendNative(ctx context.Context, to ledger.Owner, amountWei *uint256.Int) error
	// PullToken takes external-asset funds from the owner into custody.
	PullToken(ctx context.Context, owner ledger.Owner, asset ledger.AssetID, amount *uint256.Int) error
	// PushToken releases external-asset funds from custody to the recipient.
	PushToken(ctx context.Context, to ledger.Owner, asset ledger.AssetID, amount *uint256.Int) error
}

type transferOrder struct {
	Direction string `json:"direction"` // "pull" or "push"
	Asset     string `json:"asset"`
	Party     string `json:"party"`
	Amount    string `json:"amount"` // base units, decimal string
}

// CustodyClient is the HTTP adapter for the custody service's transfer API.
type CustodyClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewCustodyClient(baseURL string) *CustodyClient {
	return &CustodyClient{BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

func (c *CustodyClient) SendNative(ctx context.Context, to ledger.Owner, amountWei *uint256.Int) error {
	return c.submit(ctx, transferOrder{
		Direction: "push",
		Asset:     string(ledger.NativeAsset),
		Party:     string(to),
		Amount:    amountWei.Dec(),
	})
}

func (c *CustodyClient) PullToken(ctx context.Context, owner ledger.Owner, asset ledger.AssetID, amount *uint256.Int) error {
	return c.submit(ctx, transferOrder{
		Direction: "pull",
		Asset:     string(asset),
		Party:     string(owner),
		Amount:    amount.Dec(),
	})
}

func (c *CustodyClient) PushToken(ctx context.Context, to ledger.Owner, asset ledger.AssetID, amount *uint256.Int) error {
	return c.submit(ctx, transferOrder{
		Direction: "push",
		Asset:     string(asset),
		Party:     string(to),
		Amount:    amount.Dec(),
	})
}

func (c *CustodyClient) submit(ctx context.Context, order transferOrder) error {
	if c.BaseURL == "" {
		return fmt.Errorf("custody base url is required")
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}

	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transfers", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("custody rejected order: http %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
