package main

import (
	"log/slog"
	"time"

	"github.com/ferbarht/KipuBankV2/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT"`

	Postgres config.PostgresConfig

	// RPCURL is the EVM JSON-RPC endpoint used by the price feed and the
	// asset metadata provider.
	RPCURL        string `env:"ETH_RPC_URL"`
	PriceFeedAddr string `env:"PRICE_FEED_ADDR"`
	// CustodyURL is the base URL of the transfer-execution service.
	CustodyURL string `env:"CUSTODY_URL"`

	// WithdrawLimitWei is the per-transaction withdrawal ceiling in native
	// units; BankCapCanonical the global deposit ceiling in 6-decimal
	// canonical units. Both are fixed for the lifetime of the process.
	WithdrawLimitWei string `env:"WITHDRAW_LIMIT_WEI"`
	BankCapCanonical string `env:"BANK_CAP_USD6"`
}
