package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillbox/pkg/config"
	"github.com/jingkaihe/skillbox/pkg/logger"
	"github.com/jingkaihe/skillbox/pkg/presenter"
)

var rootCmd = &cobra.Command{
	Use:   "skillbox",
	Short: "Command line skills for devices, browsers, issue trackers and image models",
	Long: `skillbox bundles small command line skills that an agent or a human can call:
drive Android devices over adb, control a local Chromium over CDP, work with
Linear issues, read and search the web through Jina, and generate images with
Gemini or OpenAI while keeping a ledger of the estimated spend.

Run 'skillbox skill list' to see the documentation shipped for every skill.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		presenter.SetQuiet(viper.GetBool("quiet"))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format: fmt or json")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only print command output and errors")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Init(); err != nil {
		presenter.Error(err, "Failed to load configuration")
		return 1
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "")
		return 1
	}
	return 0
}
