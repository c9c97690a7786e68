// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// gatewayd runs one gateway per configured chain inside a single
// process, links every chain pair with quorum-attested in-process
// adapters, and serves Prometheus metrics for all of them. It is the
// reference wiring of the protocol components; production deployments
// substitute real transports for the in-process links.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/luxfi/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/gateway"
	"github.com/luxfi/gateway/adapters"
	"github.com/luxfi/gateway/config"
	"github.com/luxfi/gateway/gas"
	"github.com/luxfi/gateway/messages"
	"github.com/luxfi/gateway/metrics"
	"github.com/luxfi/gateway/multiadapter"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "gatewayd",
	Short:   "Cross-chain gateway daemon",
	Long:    `gatewayd batches outbound protocol messages per destination chain and processes inbound batches once the configured adapter quorum attests to them.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
	RunE:    run,
}

func init() {
	rootCmd.Flags().AddFlagSet(config.BuildFlagSet())
}

type alwaysRunning struct{}

func (alwaysRunning) Paused() bool { return false }

// loggingProcessor is the daemon's terminal message handler: it decodes
// the message kind and logs it. Embedding applications replace it with
// their own Processor when they file one into the gateway.
type loggingProcessor struct {
	log log.Logger
}

func (p *loggingProcessor) Handle(_ context.Context, chain gateway.ChainID, m gateway.Message) error {
	kind, err := messages.KindOf(m)
	if err != nil {
		return err
	}
	fields := []any{
		log.Stringer("chain", chain),
		log.Stringer("kind", kind),
	}
	if kind.PoolScoped() {
		pool, err := messages.PoolOf(m)
		if err != nil {
			return err
		}
		fields = append(fields, log.Stringer("pool", gateway.PoolID(pool)))
	}
	p.log.Info("processed inbound message", fields...)
	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	v, err := config.BuildViper(cmd.Flags())
	if err != nil {
		return fmt.Errorf("couldn't configure flags: %w", err)
	}
	cfg, err := config.NewConfig(v)
	if err != nil {
		return fmt.Errorf("couldn't build config: %w", err)
	}

	lvl, err := logLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.NewTestLogger(lvl)
	logger.Info("initializing gatewayd")

	registry := prometheus.NewRegistry()
	sink := metrics.NewSink(registry)

	svc := gas.NewService()
	props := gas.NewProperties(svc)
	for _, chain := range cfg.Chains {
		props.SetMaxBatchGasLimit(gateway.ChainID(chain.ChainID), chain.MaxBatchGasLimit)
	}

	admin := common.BytesToAddress([]byte("gatewayd-admin"))
	gateways := make(map[uint32]*gateway.Gateway, len(cfg.Chains))
	multis := make(map[uint32]*multiadapter.MultiAdapter, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		addr := componentAddr("gateway", chain.ChainID)
		gw := gateway.New(logger, addr, alwaysRunning{}, sink, admin)
		multi := multiadapter.New(logger, componentAddr("multiadapter", chain.ChainID))
		multi.SetGateway(gw)

		if err := gw.Rely(admin, multi.Addr()); err != nil {
			return err
		}
		if err := gw.File(admin, gateway.FileAdapter, multi); err != nil {
			return err
		}
		if err := gw.File(admin, gateway.FileProcessor, &loggingProcessor{log: logger}); err != nil {
			return err
		}
		if err := gw.File(admin, gateway.FileMessageProperties, props); err != nil {
			return err
		}

		gateways[chain.ChainID] = gw
		multis[chain.ChainID] = multi
	}

	if err := linkChains(logger, cfg, multis); err != nil {
		return err
	}
	for _, chain := range cfg.Chains {
		logger.Info("gateway initialized",
			log.Stringer("chain", gateway.ChainID(chain.ChainID)),
			log.Stringer("addr", gateways[chain.ChainID].Addr()),
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving metrics", log.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("gatewayd stopped")
	return err
}

// linkChains connects every chain pair with shared-identity adapter
// links. Each direction registers under the receiving chain's quorum
// threshold.
func linkChains(logger log.Logger, cfg config.Config, multis map[uint32]*multiadapter.MultiAdapter) error {
	for i := 0; i < len(cfg.Chains); i++ {
		for j := i + 1; j < len(cfg.Chains); j++ {
			a, b := cfg.Chains[i], cfg.Chains[j]
			count := a.AdapterCount
			if b.AdapterCount > count {
				count = b.AdapterCount
			}

			toB := make([]multiadapter.RegisteredAdapter, 0, count)
			toA := make([]multiadapter.RegisteredAdapter, 0, count)
			for k := 0; k < count; k++ {
				aToB, bToA, err := adapters.NewLink(
					logger,
					gateway.ChainID(a.ChainID), gateway.ChainID(b.ChainID),
					multis[a.ChainID], multis[b.ChainID],
				)
				if err != nil {
					return err
				}
				toB = append(toB, aToB.Registered())
				toA = append(toA, bToA.Registered())
			}

			if err := multis[a.ChainID].Register(gateway.ChainID(b.ChainID), b.QuorumThreshold, toB); err != nil {
				return err
			}
			if err := multis[b.ChainID].Register(gateway.ChainID(a.ChainID), a.QuorumThreshold, toA); err != nil {
				return err
			}
		}
	}
	return nil
}

func componentAddr(kind string, chainID uint32) common.Address {
	buf := make([]byte, 0, len(kind)+4)
	buf = append(buf, kind...)
	buf = binary.BigEndian.AppendUint32(buf, chainID)
	return common.BytesToAddress(buf)
}

func logLevel(s string) (level.Level, error) {
	switch s {
	case "debug":
		return level.Debug, nil
	case "info":
		return level.Info, nil
	case "warn":
		return level.Warn, nil
	case "error":
		return level.Error, nil
	default:
		return level.Info, fmt.Errorf("unknown log level %q", s)
	}
}
