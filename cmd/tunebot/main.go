// Command tunebot runs the Telegram music bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/tunebot/core/buildinfo"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tunebot",
		Short:         "Telegram bot that finds YouTube music and sends it as MP3",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildinfo.String(),
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH or "+defaultConfigPath+")")

	run := newRunCmd(&configPath)
	root.AddCommand(run, newCheckCmd(&configPath))
	// Running the binary bare starts the bot.
	root.RunE = run.RunE
	return root
}
