package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print model and corpus statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger := newLogger(config, cmd.ErrOrStderr())

		a, err := openApp(config, logger, fediPorts{})
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx := cmd.Context()
		if err = a.load(ctx); err != nil {
			return err
		}
		count, err := a.store.Count(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(StatsResponse{Model: a.chain.Stats(), CorpusSamples: count})
	},
}
