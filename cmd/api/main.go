package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"

	"github.com/ferbarht/KipuBankV2/internal/api"
	"github.com/ferbarht/KipuBankV2/internal/evmrpc"
	"github.com/ferbarht/KipuBankV2/internal/gateway"
	"github.com/ferbarht/KipuBankV2/internal/infra/logging"
	"github.com/ferbarht/KipuBankV2/internal/infra/pgutils"
	"github.com/ferbarht/KipuBankV2/internal/oracle"
	"github.com/ferbarht/KipuBankV2/internal/repos/journal"
	journalpg "github.com/ferbarht/KipuBankV2/internal/repos/journal/postgres"
	"github.com/ferbarht/KipuBankV2/internal/token"
	"github.com/ferbarht/KipuBankV2/internal/vault"
	"github.com/ferbarht/KipuBankV2/pkg/envconf"
	"github.com/ferbarht/KipuBankV2/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		return dbConns.Close()
	})

	// --- Vault wiring ---
	withdrawLimit, err := uint256.FromDecimal(cfg.WithdrawLimitWei)
	if err != nil {
		return fmt.Errorf("parse WITHDRAW_LIMIT_WEI: %w", err)
	}

	bankCap, err := uint256.FromDecimal(cfg.BankCapCanonical)
	if err != nil {
		return fmt.Errorf("parse BANK_CAP_USD6: %w", err)
	}

	rpcClient := evmrpc.NewClient(cfg.RPCURL)
	feed := oracle.NewRPCFeed(rpcClient, cfg.PriceFeedAddr)
	meta := token.NewRPCMetadata(rpcClient)
	mover := gateway.NewCustodyClient(cfg.CustodyURL)

	jrnl := journalpg.New(dbConns)
	sink := vault.MultiSink{vault.LogSink{}, journal.NewSink(jrnl)}

	vlt, err := vault.New(vault.Config{
		WithdrawLimitWei: withdrawLimit,
		BankCapCanonical: bankCap,
	}, feed, meta, mover, sink)
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.NewHandler(vlt, jrnl))

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
