package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add the lines of a text file to the corpus",
	Long: `Add every non-empty line of a text file to the corpus as its own sample.
Lines are sanitized like fetched posts. The running server picks them up on
its next restart.

Examples:
  echolalia import archive.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger := newLogger(config, os.Stdout)

		a, err := openApp(config, logger, fediPorts{})
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()

		ctx := cmd.Context()
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		var lines, added int
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			lines++
			ok, err := a.bot.Learn(ctx, line)
			if err != nil {
				return fmt.Errorf("failed to import line %d: %w", lines, err)
			}
			if ok {
				added++
			}
		}
		if err = scanner.Err(); err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		logger.Info("Import completed", "file", args[0], "lines_read", lines, "samples_added", added)
		return nil
	},
}
