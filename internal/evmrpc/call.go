// Package evmrpc is a minimal EVM JSON-RPC client covering the single method
// the service needs: eth_call against a contract, returning the raw hex
// result. No ABI generalization.
package evmrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

const maxRespBytes = 2 << 20

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client issues eth_call requests against a single RPC endpoint.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

func NewClient(url string) *Client {
	return &Client{URL: strings.TrimSpace(url)}
}

// Call performs eth_call with the given calldata against contract `to` at the
// latest block and returns the 0x-prefixed hex result.
func (c *Client) Call(ctx context.Context, to, data string) (string, error) {
	if c.URL == "" {
		return "", fmt.Errorf("rpc url is required")
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 12 * time.Second}
	}

	raw, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params: []any{
			map[string]any{"to": to, "data": data},
			"latest",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("rpc http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode rpc json: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}

	if strings.TrimSpace(out.Result) == "" {
		return "", fmt.Errorf("empty rpc result")
	}

	return out.Result, nil
}

// Word extracts the idx-th 32-byte word of an eth_call result as a big.Int.
func Word(result string, idx int) (*big.Int, error) {
	h := strings.TrimPrefix(strings.TrimSpace(result), "0x")
	if len(h) < (idx+1)*64 {
		return nil, fmt.Errorf("result too short for word %d: %d hex chars", idx, len(h))
	}

	word := h[idx*64 : (idx+1)*64]

	n := new(big.Int)
	if _, ok := n.SetString(word, 16); !ok {
		return nil, fmt.Errorf("invalid hex word: %s", word)
	}

	return n, nil
}
