// Command echolalia is a Markov chain "ebooks" bot. It learns from a
// fediverse account's posts, keeps the raw samples in a sqlite corpus, and
// posts generated text on a schedule.
//
// Usage:
//
//	echolalia [--config path] <command>
//
// Commands:
//
//	run       - Run the bot loop and the admin API
//	import    - Add the lines of a text file to the corpus
//	generate  - Print generated text from the stored corpus
//	stats     - Print model and corpus statistics
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "echolalia",
	Short: "Markov chain ebooks bot",
	Long: `Echolalia learns how an account writes and posts text that sounds like it.

Configuration is read from a JSON or TOML file (chosen by extension). A
missing file is created with defaults. Secrets may instead be placed in the
environment or a .env file:
  ECHOLALIA_ACCESS_TOKEN  access token for the instance
  ECHOLALIA_API_KEY       key required in the echo-auth header of API calls

Examples:
  echolalia run
  echolalia --config echolalia.toml import tweets.txt
  echolalia generate -n 5 --min-length 12`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; the environment and config file still apply.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./config.json", "config file (.json or .toml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
