// Package token resolves external-asset metadata. Each asset's native
// precision is queried at most once and cached; presence in the cache is the
// marker, so an asset that legitimately reports zero decimals is never
// confused with an unqueried one.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ferbarht/KipuBankV2/internal/evmrpc"
	"github.com/ferbarht/KipuBankV2/internal/ledger"
	"github.com/ferbarht/KipuBankV2/internal/units"
)

// MetadataProvider answers decimals queries for external assets.
type MetadataProvider interface {
	DecimalsOf(ctx context.Context, asset ledger.AssetID) (uint8, error)
}

// DecimalsCache is a read-through cache over a MetadataProvider. Lookup
// failures are returned but not cached, so a transiently unreachable asset
// can succeed later.
type DecimalsCache struct {
	provider MetadataProvider

	mu    sync.RWMutex
	cache map[ledger.AssetID]uint8
}

func NewDecimalsCache(provider MetadataProvider) *DecimalsCache {
	return &DecimalsCache{
		provider: provider,
		cache:    make(map[ledger.AssetID]uint8),
	}
}

// DecimalsOf returns the asset's native precision, querying the provider on
// first observation. A provider failure surfaces as an unsupported-precision
// error: an asset whose precision cannot be resolved cannot be accounted.
func (c *DecimalsCache) DecimalsOf(ctx context.Context, asset ledger.AssetID) (uint8, error) {
	c.mu.RLock()
	dec, ok := c.cache[asset]
	c.mu.RUnlock()

	if ok {
		return dec, nil
	}

	dec, err := c.provider.DecimalsOf(ctx, asset)
	if err != nil {
		return 0, fmt.Errorf("resolve decimals of %s: %w",
			asset, errors.Join(units.ErrUnsupportedPrecision, err))
	}

	c.mu.Lock()
	// Another caller may have resolved it meanwhile; first write wins.
	if cached, ok := c.cache[asset]; ok {
		dec = cached
	} else {
		c.cache[asset] = dec
	}
	c.mu.Unlock()

	return dec, nil
}

// decimals() selector on an ERC-20 contract.
const decimalsSelector = "0x313ce567"

// RPCMetadata queries decimals() over EVM JSON-RPC.
type RPCMetadata struct {
	client *evmrpc.Client
}

func NewRPCMetadata(client *evmrpc.Client) *RPCMetadata {
	return &RPCMetadata{client: client}
}

func (m *RPCMetadata) DecimalsOf(ctx context.Context, asset ledger.AssetID) (uint8, error) {
	result, err := m.client.Call(ctx, string(asset), decimalsSelector)
	if err != nil {
		return 0, fmt.Errorf("decimals call: %w", err)
	}

	word, err := evmrpc.Word(result, 0)
	if err != nil {
		return 0, fmt.Errorf("decode decimals: %w", err)
	}

	if !word.IsUint64() || word.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of uint8 range: %s", word.String())
	}

	return uint8(word.Uint64()), nil
}
