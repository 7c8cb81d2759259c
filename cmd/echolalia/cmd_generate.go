package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CTAG07/Echolalia/pkg/markov"
)

var (
	generateCount       int
	generateMinLength   int
	generateTemperature float64
	generateTopK        int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print generated text from the stored corpus",
	Long: `Rebuild the model from the stored corpus and print generated texts,
one per line. Nothing is posted.

Examples:
  echolalia generate
  echolalia generate -n 10 --min-length 20 --temperature 0.8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateCount <= 0 {
			return fmt.Errorf("count must be positive, got %d", generateCount)
		}
		config, err := LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if generateMinLength > 0 {
			config.Bot.MinLength = generateMinLength
		}
		logger := newLogger(config, cmd.ErrOrStderr())

		a, err := openApp(config, logger, fediPorts{})
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if err = a.load(cmd.Context()); err != nil {
			return err
		}
		if !a.chain.Parsed() {
			return fmt.Errorf("the corpus is empty, import or fetch some posts first")
		}

		opts := []markov.GenerateOption{markov.WithTemperature(generateTemperature)}
		if generateTopK > 0 {
			opts = append(opts, markov.WithTopK(generateTopK))
		}
		for i := 0; i < generateCount; i++ {
			fmt.Fprintln(cmd.OutOrStdout(), a.bot.Compose(opts...))
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 1, "number of texts to generate")
	generateCmd.Flags().IntVar(&generateMinLength, "min-length", 0, "minimum length in model units (default from config)")
	generateCmd.Flags().Float64Var(&generateTemperature, "temperature", 1.0, "sampling temperature; 0 always picks the most frequent successor")
	generateCmd.Flags().IntVar(&generateTopK, "top-k", 0, "sample only among the k most frequent successors (0 disables)")
}
