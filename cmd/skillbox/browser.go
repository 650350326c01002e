package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/browser"
	"github.com/jingkaihe/skillbox/pkg/config"
	"github.com/jingkaihe/skillbox/pkg/logger"
	"github.com/jingkaihe/skillbox/pkg/presenter"
)

// BrowserConfig holds the configuration of the browser commands
type BrowserConfig struct {
	Port         int
	Headful      bool
	ProfileDir   string
	ReadyTimeout time.Duration
}

// NewBrowserConfig creates a BrowserConfig with default values
func NewBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Port:         browser.DefaultPort,
		Headful:      false,
		ProfileDir:   "",
		ReadyTimeout: 15 * time.Second,
	}
}

func getBrowserConfigFromFlags(cmd *cobra.Command) *BrowserConfig {
	config := NewBrowserConfig()
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if headful, err := cmd.Flags().GetBool("headful"); err == nil {
		config.Headful = headful
	}
	if profile, err := cmd.Flags().GetString("profile"); err == nil {
		config.ProfileDir = profile
	}
	if timeout, err := cmd.Flags().GetDuration("timeout"); err == nil {
		config.ReadyTimeout = timeout
	}
	return config
}

func defaultProfileDir() (string, error) {
	home, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "browser-profile"), nil
}

func attach(cmd *cobra.Command, newTab bool) (*browser.Session, error) {
	cfg := getBrowserConfigFromFlags(cmd)
	return browser.NewClient(cfg.Port).Attach(cmd.Context(), newTab)
}

var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Control a local Chromium over the DevTools protocol",
	Long: `Control a local Chromium over the DevTools protocol.

'start' launches a detached browser with remote debugging enabled. Every other
command attaches to the most recent tab of that browser, runs, and leaves the
tab open for the next command.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		cmd.SetContext(logger.WithSkill(cmd.Context(), "browser"))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var browserStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Launch the browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := getBrowserConfigFromFlags(cmd)
		if cfg.ProfileDir == "" {
			dir, err := defaultProfileDir()
			if err != nil {
				return err
			}
			cfg.ProfileDir = dir
		}

		result, err := browser.Start(cmd.Context(), browser.LaunchOptions{
			Port:         cfg.Port,
			Headful:      cfg.Headful,
			ProfileDir:   cfg.ProfileDir,
			ReadyTimeout: cfg.ReadyTimeout,
		})
		if err != nil {
			return err
		}

		if result.AlreadyRunning {
			presenter.Info(fmt.Sprintf("Browser already running on port %d", cfg.Port))
		} else {
			presenter.Success(fmt.Sprintf("Started %s (pid %d) on port %d", result.Version.Browser, result.PID, cfg.Port))
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Version.WebSocketDebuggerURL)
		return nil
	},
}

var browserStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Kill the browser listening on the debugging port",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := getBrowserConfigFromFlags(cmd)
		pids, err := browser.Stop(cmd.Context(), cfg.Port)
		if err != nil {
			return err
		}
		if len(pids) == 0 {
			presenter.Info(fmt.Sprintf("No browser found on port %d", cfg.Port))
			return nil
		}
		presenter.Success(fmt.Sprintf("Stopped %d browser process(es) on port %d", len(pids), cfg.Port))
		return nil
	},
}

var browserTabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List open tabs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := getBrowserConfigFromFlags(cmd)
		tabs, err := browser.NewClient(cfg.Port).Tabs(cmd.Context())
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"ID", "Title", "URL"})
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		for _, t := range tabs {
			table.Append([]string{t.ID, t.Title, t.URL})
		}
		table.Render()
		return nil
	},
}

var browserNavCmd = &cobra.Command{
	Use:   "nav <url>",
	Short: "Navigate the active tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newTab, _ := cmd.Flags().GetBool("new")
		session, err := attach(cmd, newTab)
		if err != nil {
			return err
		}
		info, err := session.Navigate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", info.URL, info.Title)
		return nil
	},
}

var browserEvalCmd = &cobra.Command{
	Use:   "eval <javascript>",
	Short: "Evaluate JavaScript in the active tab and print the JSON result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := attach(cmd, false)
		if err != nil {
			return err
		}
		result, err := session.Eval(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(result) == 0 {
			result = []byte("null")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(result))
		return nil
	},
}

var browserScreenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture a PNG of the active tab",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		full, _ := cmd.Flags().GetBool("full")
		out, _ := cmd.Flags().GetString("out")

		session, err := attach(cmd, false)
		if err != nil {
			return err
		}
		data, err := session.Screenshot(cmd.Context(), full)
		if err != nil {
			return err
		}
		path := outputPath(out, "browser", "image/png")
		if err := writeOutputFile(path, data); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var browserContentCmd = &cobra.Command{
	Use:   "content",
	Short: "Print the active tab as markdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		target, _ := cmd.Flags().GetString("url")

		session, err := attach(cmd, false)
		if err != nil {
			return err
		}
		html, info, err := session.Content(cmd.Context(), target)
		if err != nil {
			return err
		}
		markdown, err := browser.HTMLToMarkdown(html, info.URL)
		if err != nil {
			return errors.Wrapf(err, "failed to convert %s", info.URL)
		}
		fmt.Fprintln(cmd.OutOrStdout(), markdown)
		return nil
	},
}

func init() {
	defaults := NewBrowserConfig()
	browserCmd.PersistentFlags().Int("port", defaults.Port, "Remote debugging port")

	browserStartCmd.Flags().Bool("headful", defaults.Headful, "Show the browser window")
	browserStartCmd.Flags().String("profile", defaults.ProfileDir, "Profile directory (default ~/.skillbox/browser-profile)")
	browserStartCmd.Flags().Duration("timeout", defaults.ReadyTimeout, "How long to wait for the browser to accept connections")

	browserNavCmd.Flags().Bool("new", false, "Open the URL in a new tab")
	browserScreenshotCmd.Flags().Bool("full", false, "Capture the whole page instead of the viewport")
	browserScreenshotCmd.Flags().StringP("out", "o", "", "Output file (defaults to a new file in the output directory)")
	browserContentCmd.Flags().String("url", "", "Navigate to this URL first")

	browserCmd.AddCommand(
		browserStartCmd,
		browserStopCmd,
		browserTabsCmd,
		browserNavCmd,
		browserEvalCmd,
		browserScreenshotCmd,
		browserContentCmd,
	)
	rootCmd.AddCommand(browserCmd)
}
