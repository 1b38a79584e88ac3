package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ferbarht/KipuBankV2/internal/evmrpc"
)

// latestRoundData() on a Chainlink-style aggregator. The answer is the second
// of five return words, an int256.
const latestRoundDataSelector = "0xfeaf968c"

// RPCFeed reads the price from an on-chain aggregator over EVM JSON-RPC.
type RPCFeed struct {
	client   *evmrpc.Client
	feedAddr string
}

func NewRPCFeed(client *evmrpc.Client, feedAddr string) *RPCFeed {
	return &RPCFeed{client: client, feedAddr: feedAddr}
}

func (f *RPCFeed) LatestPrimaryPrice(ctx context.Context) (*uint256.Int, error) {
	result, err := f.client.Call(ctx, f.feedAddr, latestRoundDataSelector)
	if err != nil {
		return nil, fmt.Errorf("latestRoundData call: %w", err)
	}

	answer, err := evmrpc.Word(result, 1)
	if err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}

	// int256 two's complement: a set sign bit means a negative answer.
	if answer.Bit(255) == 1 {
		neg := new(big.Int).Sub(answer, new(big.Int).Lsh(big.NewInt(1), 256))

		return nil, InvalidPriceError{Answer: neg.String()}
	}

	if answer.Sign() == 0 {
		return nil, InvalidPriceError{Answer: "0"}
	}

	price, overflow := uint256.FromBig(answer)
	if overflow {
		return nil, fmt.Errorf("answer out of range: %s", answer.String())
	}

	return price, nil
}
