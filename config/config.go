// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads and validates the gateway daemon configuration
// from a JSON file, environment variables, and command line flags.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/luxfi/gateway/gas"
)

const (
	defaultLogLevel    = "info"
	defaultMetricsPort = uint16(9090)
)

const usageText = `Usage:
gatewayd --config-file config.json [--version] [--help]

The gateway daemon connects a local chain to its remote counterparts,
batching outbound protocol messages and processing inbound batches once
the configured adapter quorum attests to them.
`

// ChainConfig describes one remote chain the gateway talks to.
type ChainConfig struct {
	ChainID          uint32 `mapstructure:"chain-id" json:"chain-id"`
	QuorumThreshold  int    `mapstructure:"quorum-threshold" json:"quorum-threshold"`
	AdapterCount     int    `mapstructure:"adapter-count" json:"adapter-count"`
	MaxBatchGasLimit uint64 `mapstructure:"max-batch-gas-limit" json:"max-batch-gas-limit"`
}

// Config is the top-level gateway daemon configuration.
type Config struct {
	LogLevel    string        `mapstructure:"log-level" json:"log-level"`
	MetricsPort uint16        `mapstructure:"metrics-port" json:"metrics-port"`
	Chains      []ChainConfig `mapstructure:"chains" json:"chains"`
}

func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("no chains configured")
	}
	seen := make(map[uint32]struct{}, len(c.Chains))
	for i := range c.Chains {
		chain := &c.Chains[i]
		if _, ok := seen[chain.ChainID]; ok {
			return fmt.Errorf("duplicate chain id %d", chain.ChainID)
		}
		seen[chain.ChainID] = struct{}{}

		if chain.AdapterCount < 1 {
			return fmt.Errorf("chain %d: adapter count must be at least 1", chain.ChainID)
		}
		if chain.QuorumThreshold < 1 || chain.QuorumThreshold > chain.AdapterCount {
			return fmt.Errorf(
				"chain %d: quorum threshold %d out of range [1, %d]",
				chain.ChainID, chain.QuorumThreshold, chain.AdapterCount,
			)
		}
		if chain.MaxBatchGasLimit == 0 {
			chain.MaxBatchGasLimit = gas.DefaultMaxBatchGasLimit
		}
		if chain.MaxBatchGasLimit < gas.MaxMessageCost {
			return fmt.Errorf(
				"chain %d: max batch gas limit %d below the single message ceiling %d",
				chain.ChainID, chain.MaxBatchGasLimit, gas.MaxMessageCost,
			)
		}
	}
	return nil
}

// BuildFlagSet returns the daemon's command line flags.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("gatewayd", pflag.ContinueOnError)
	fs.String(ConfigFileKey, os.Getenv(ConfigFileEnvKey), "Path to the configuration file")
	fs.BoolP(VersionKey, "", false, "Display gatewayd version")
	fs.BoolP(HelpKey, "", false, "Display gatewayd usage")
	return fs
}

func DisplayUsageText() {
	fmt.Print(usageText)
}
