package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/android"
	"github.com/jingkaihe/skillbox/pkg/logger"
	"github.com/jingkaihe/skillbox/pkg/presenter"
)

// AndroidConfig holds the flags shared by the android commands
type AndroidConfig struct {
	Serial     string
	Package    string
	ProjectDir string
}

// NewAndroidConfig creates an AndroidConfig with default values
func NewAndroidConfig() *AndroidConfig {
	return &AndroidConfig{
		Serial:     "",
		Package:    "",
		ProjectDir: ".",
	}
}

func getAndroidConfigFromFlags(cmd *cobra.Command) *AndroidConfig {
	config := NewAndroidConfig()
	if serial, err := cmd.Flags().GetString("serial"); err == nil {
		config.Serial = serial
	}
	if pkg, err := cmd.Flags().GetString("package"); err == nil {
		config.Package = pkg
	}
	if dir, err := cmd.Flags().GetString("dir"); err == nil {
		config.ProjectDir = dir
	}
	return config
}

func (c *AndroidConfig) adb() *android.ADB {
	return android.New(android.WithSerial(c.Serial))
}

// resolvePackage returns --package or the application id of the project.
func (c *AndroidConfig) resolvePackage(ctx context.Context) (string, error) {
	if c.Package != "" {
		return c.Package, nil
	}
	d, err := android.DetectPackage(c.ProjectDir)
	if err != nil {
		return "", err
	}
	logger.G(ctx).WithField("package", d.Package).WithField("source", d.Source).Debug("detected package")
	return d.Package, nil
}

var androidCmd = &cobra.Command{
	Use:   "android",
	Short: "Drive an Android device or emulator over adb",
	Long: `Drive an Android device or emulator over adb.

The device is --serial, then $ANDROID_SERIAL, then the only connected device.
Commands that act on an app use --package, or detect the application id from the
Android project in --dir.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		cmd.SetContext(logger.WithSkill(cmd.Context(), "android"))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var androidDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		devices, err := getAndroidConfigFromFlags(cmd).adb().Devices(cmd.Context())
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			presenter.Warning("No devices connected")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Serial", "State", "Model", "Emulator"})
		table.SetBorder(false)
		for _, d := range devices {
			table.Append([]string{d.Serial, d.State, d.Model(), fmt.Sprint(d.IsEmulator())})
		}
		table.Render()
		return nil
	},
}

var androidDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the application id of the Android project in --dir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config := getAndroidConfigFromFlags(cmd)
		d, err := android.DetectPackage(config.ProjectDir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), d.Package)
		presenter.Info(fmt.Sprintf("from %s (%s)", d.Source, d.Field))
		return nil
	},
}

var androidScreenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture the screen as PNG",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := getAndroidConfigFromFlags(cmd).adb().Screenshot(cmd.Context())
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		path := outputPath(out, "android", "image/png")
		if err := writeOutputFile(path, data); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var androidInstallCmd = &cobra.Command{
	Use:   "install <apk>",
	Short: "Install an APK",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		replace, _ := cmd.Flags().GetBool("replace")
		out, err := getAndroidConfigFromFlags(cmd).adb().Install(cmd.Context(), args[0], replace)
		if err != nil {
			return err
		}
		logger.G(cmd.Context()).Debug(out)
		presenter.Success("Installed " + args[0])
		return nil
	},
}

// packageCommand builds a command that acts on the resolved package.
func packageCommand(use, short string, action func(ctx context.Context, adb *android.ADB, pkg string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config := getAndroidConfigFromFlags(cmd)
			pkg, err := config.resolvePackage(ctx)
			if err != nil {
				return err
			}
			msg, err := action(ctx, config.adb(), pkg)
			if err != nil {
				return err
			}
			presenter.Success(msg)
			return nil
		},
	}
}

var androidUninstallCmd = packageCommand("uninstall", "Uninstall the app", func(ctx context.Context, adb *android.ADB, pkg string) (string, error) {
	if _, err := adb.Uninstall(ctx, pkg); err != nil {
		return "", err
	}
	return "Uninstalled " + pkg, nil
})

var androidLaunchCmd = packageCommand("launch", "Launch the app's main activity", func(ctx context.Context, adb *android.ADB, pkg string) (string, error) {
	return "Launched " + pkg, adb.Launch(ctx, pkg)
})

var androidStopCmd = packageCommand("stop", "Force-stop the app", func(ctx context.Context, adb *android.ADB, pkg string) (string, error) {
	return "Stopped " + pkg, adb.Stop(ctx, pkg)
})

var androidClearCmd = packageCommand("clear", "Clear the app's data", func(ctx context.Context, adb *android.ADB, pkg string) (string, error) {
	return "Cleared data of " + pkg, adb.Clear(ctx, pkg)
})

var androidPackagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List installed packages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		pkgs, err := getAndroidConfigFromFlags(cmd).adb().Packages(cmd.Context(), filter)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(pkgs, "\n"))
		return nil
	},
}

var androidLogcatCmd = &cobra.Command{
	Use:   "logcat",
	Short: "Print recent log lines of the app",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		config := getAndroidConfigFromFlags(cmd)
		lines, _ := cmd.Flags().GetInt("lines")
		all, _ := cmd.Flags().GetBool("all")
		adb := config.adb()

		pid := 0
		if !all {
			pkg, err := config.resolvePackage(ctx)
			if err != nil {
				return err
			}
			if pid, err = adb.PID(ctx, pkg); err != nil {
				return err
			}
		}

		out, err := adb.Logcat(ctx, lines, pid)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var androidTapCmd = &cobra.Command{
	Use:   "tap <x> <y>",
	Short: "Tap the screen",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		xy, err := parseInts(args)
		if err != nil {
			return err
		}
		return getAndroidConfigFromFlags(cmd).adb().Tap(cmd.Context(), xy[0], xy[1])
	},
}

var androidSwipeCmd = &cobra.Command{
	Use:   "swipe <x1> <y1> <x2> <y2>",
	Short: "Swipe between two points",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parseInts(args)
		if err != nil {
			return err
		}
		duration, _ := cmd.Flags().GetInt("duration")
		return getAndroidConfigFromFlags(cmd).adb().Swipe(cmd.Context(), p[0], p[1], p[2], p[3], duration)
	},
}

var androidTextCmd = &cobra.Command{
	Use:   "text <text>",
	Short: "Type text into the focused field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndroidConfigFromFlags(cmd).adb().Text(cmd.Context(), args[0])
	},
}

var androidKeyCmd = &cobra.Command{
	Use:   "key <keycode>",
	Short: "Send a key event (back, home, enter, 66, KEYCODE_MENU...)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndroidConfigFromFlags(cmd).adb().Key(cmd.Context(), args[0])
	},
}

var androidUIDumpCmd = &cobra.Command{
	Use:   "ui-dump",
	Short: "Print the view hierarchy XML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := getAndroidConfigFromFlags(cmd).adb().UIDump(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var androidShellCmd = &cobra.Command{
	Use:   "shell <command>",
	Short: "Run a shell command on the device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := getAndroidConfigFromFlags(cmd).adb().ShellLine(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	defaults := NewAndroidConfig()
	androidCmd.PersistentFlags().StringP("serial", "s", defaults.Serial, "Device serial (defaults to $ANDROID_SERIAL or the only connected device)")
	androidCmd.PersistentFlags().StringP("package", "p", defaults.Package, "Application id (detected from the project when omitted)")
	androidCmd.PersistentFlags().String("dir", defaults.ProjectDir, "Android project directory used for package detection")

	androidScreenshotCmd.Flags().StringP("out", "o", "", "Output file (defaults to a new file in the output directory)")
	androidInstallCmd.Flags().Bool("replace", true, "Replace an existing installation")
	androidPackagesCmd.Flags().String("filter", "", "Glob filter such as 'com.example.*'")
	androidLogcatCmd.Flags().Int("lines", 200, "Number of lines to print")
	androidLogcatCmd.Flags().Bool("all", false, "Do not filter by the app's pid")
	androidSwipeCmd.Flags().Int("duration", 300, "Swipe duration in milliseconds")

	androidCmd.AddCommand(
		androidDevicesCmd,
		androidDetectCmd,
		androidScreenshotCmd,
		androidInstallCmd,
		androidUninstallCmd,
		androidLaunchCmd,
		androidStopCmd,
		androidClearCmd,
		androidPackagesCmd,
		androidLogcatCmd,
		androidTapCmd,
		androidSwipeCmd,
		androidTextCmd,
		androidKeyCmd,
		androidUIDumpCmd,
		androidShellCmd,
	)
	rootCmd.AddCommand(androidCmd)
}
