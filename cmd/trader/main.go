package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"dexterm/internal/book"
	"dexterm/internal/catalog"
	"dexterm/internal/domain"
	"dexterm/internal/infra"
	"dexterm/internal/submit"
	"dexterm/internal/venue"
	"dexterm/pkg/numfmt"
	"dexterm/pkg/scale"
)

func main() {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("❌ Config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workspace + single-instance lock (protects the catalog cache DB).
	workDir := infra.GetWorkspaceDir()
	if err := infra.EnsureDir(workDir); err != nil {
		slog.Error("❌ Workspace setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		slog.Error("❌ Instance lock failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer unlock()

	// Catalog: venue fetch with sqlite cache behind it.
	rest := venue.NewRestClient(cfg.Venue.RestURL)
	store, err := catalog.NewStore(filepath.Join(workDir, "catalog.db"))
	if err != nil {
		slog.Error("❌ Catalog cache open failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	provider := catalog.NewProvider(rest, store, time.Duration(cfg.Catalog.CacheTTLSec)*time.Second)
	market, err := provider.Find(ctx, cfg.Venue.MarketID)
	if err != nil {
		slog.Error("❌ Market selection failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("✅ Market selected", slog.String("id", market.ID), slog.String("ticker", market.Ticker))

	// Order-book synchronizer over snapshot + stream.
	stream := venue.NewStreamSource(rest, cfg.Venue.WSURL)
	sync := book.NewSynchronizer(stream, func(snap domain.BookSnapshot) {
		if ref, ok := snap.ReferencePrice(); ok {
			slog.Debug("Book updated",
				slog.String("market", snap.MarketID),
				slog.String("mid", numfmt.FormatSmall(ref)),
				slog.Int("bids", len(snap.Bids)),
				slog.Int("asks", len(snap.Asks)))
		}
	})
	defer sync.Teardown()
	sync.Select(ctx, market.ID)

	// Wallet + submission pipeline.
	var key []byte
	if cfg.Wallet.KeyHex != "" {
		key, err = hex.DecodeString(cfg.Wallet.KeyHex)
		if err != nil {
			slog.Error("❌ Wallet key is not valid hex")
			os.Exit(1)
		}
	}
	wallet := venue.NewKeyWallet(cfg.Wallet.Address, key)
	defer wallet.Wipe()

	pipeline := submit.NewPipeline(submit.Config{
		Engine:       scale.NewEngine(),
		Accounts:     rest,
		Signer:       wallet,
		Broadcaster:  rest,
		FeeRecipient: cfg.Venue.FeeRecipient,
		OnRefresh: func() {
			slog.Info("🔄 Balance refresh requested")
		},
		OnPhase: func(phase submit.Phase) {
			slog.Debug("Submission phase", slog.String("phase", phase.String()))
		},
		PollInterval: time.Duration(cfg.Submit.PollIntervalMS) * time.Millisecond,
		PollBudget:   cfg.Submit.PollBudget,
	})

	go commandLoop(ctx, cfg, &market, sync, pipeline, wallet)

	slog.Info("✨ dexterm ready. Commands: buy <qty> [price] | sell <qty> [price] | book | quit")
	<-ctx.Done()
	slog.Info("👋 Shutting down gracefully...")
}

// commandLoop reads trade commands from stdin and drives the submission
// pipeline. "buy 1.5 25000" places a limit order; omitting the price places
// a market order against the current reference price.
func commandLoop(ctx context.Context, cfg *infra.Config, market *domain.Market,
	sync *book.Synchronizer, pipeline *submit.Pipeline, wallet *venue.KeyWallet) {

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "quit", "exit":
			slog.Info("Bye")
			os.Exit(0)

		case "book":
			printBook(sync)

		case "buy", "sell":
			if pipeline.Busy() {
				fmt.Println("a submission is already in flight")
				continue
			}
			if len(fields) < 2 {
				fmt.Println("usage: buy|sell <qty> [price]")
				continue
			}
			side := domain.SideBuy
			if fields[0] == "sell" {
				side = domain.SideSell
			}
			intent := domain.TradeIntent{Side: side, Kind: domain.KindMarket, Quantity: fields[1]}
			if len(fields) >= 3 {
				intent.Kind = domain.KindLimit
				intent.Price = fields[2]
			}

			ref, haveRef := sync.ReferencePrice()
			res := pipeline.Submit(ctx, submit.Request{
				Market:          market,
				Intent:          intent,
				WalletConnected: wallet.Address() != "",
				Address:         wallet.Address(),
				SubaccountIndex: cfg.Venue.SubaccountIndex,
				ReferencePrice:  ref,
				HaveReference:   haveRef,
			})
			switch res.Phase {
			case submit.PhaseConfirmed:
				fmt.Printf("confirmed: %s\n", res.TxHash)
			case submit.PhaseUnconfirmed:
				fmt.Printf("submitted, confirmation unknown: %s\n", res.TxHash)
			default:
				fmt.Printf("failed: %s\n", res.Err)
			}

		default:
			fmt.Println("commands: buy <qty> [price] | sell <qty> [price] | book | quit")
		}
	}
}

func printBook(sync *book.Synchronizer) {
	snap, ok := sync.Snapshot()
	if !ok {
		fmt.Println("book unavailable")
		return
	}
	for i := len(snap.Asks) - 1; i >= 0; i-- {
		fmt.Printf("  ask %s x %s\n", snap.Asks[i].Price, snap.Asks[i].Quantity)
	}
	if ref, ok := snap.ReferencePrice(); ok {
		fmt.Printf("  --- mid %s ---\n", numfmt.FormatSmall(ref))
	}
	for _, b := range snap.Bids {
		fmt.Printf("  bid %s x %s\n", b.Price, b.Quantity)
	}
}
