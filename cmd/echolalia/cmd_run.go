package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot loop and the admin API",
	Long: `Load the corpus, then fetch, learn and post on the configured intervals
while serving the admin API. POST /api/server/restart reloads the config and
rebuilds the model; SIGINT, SIGTERM or POST /api/server/shutdown stop it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

		actionChan := make(chan string, 1)

		go func() {
			osSignalChan := make(chan os.Signal, 1)
			signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
			<-osSignalChan // Wait for a signal
			baseLogger.Info("OS signal received, initiating shutdown.")
			actionChan <- actionShutdown
		}()

		for {
			action, err := serve(cfgFile, actionChan)
			if err != nil {
				baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
				return err
			}

			if action != actionRestart {
				break
			}
			baseLogger.Info("--- Server Restarting ---")
		}

		baseLogger.Info("Echolalia has shut down.")
		return nil
	},
}
