package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/jingkaihe/skillbox/pkg/logger"
)

// LaunchOptions controls how a browser is started.
type LaunchOptions struct {
	Port       int
	Headful    bool
	ProfileDir string
	Binary     string
	// ReadyTimeout bounds how long Start waits for /json/version.
	ReadyTimeout time.Duration
}

// StartResult describes the browser Start found or spawned.
type StartResult struct {
	Version        *VersionInfo
	PID            int
	AlreadyRunning bool
}

var chromeCandidates = map[string][]string{
	"linux": {
		"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome",
	},
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"google-chrome", "chromium",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		"chrome.exe",
	},
}

// FindChrome locates a Chrome or Chromium executable. CHROME_PATH wins.
func FindChrome() (string, error) {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", errors.Wrapf(err, "CHROME_PATH %s is not usable", p)
		}
		return p, nil
	}

	for _, candidate := range chromeCandidates[runtime.GOOS] {
		if strings.ContainsAny(candidate, `/\`) {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			continue
		}
		if p, err := exec.LookPath(candidate); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no Chrome or Chromium found; install one or set CHROME_PATH")
}

// LaunchArgs builds the command line for a debuggable browser.
func LaunchArgs(opts LaunchOptions) []string {
	args := []string{
		portFlag(opts.Port),
		"--user-data-dir=" + opts.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--disable-background-timer-throttling",
		"--disable-renderer-backgrounding",
		"--window-size=1920,1080",
	}
	if !opts.Headful {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	return append(args, "about:blank")
}

func portFlag(port int) string {
	return fmt.Sprintf("--remote-debugging-port=%d", port)
}

// Start launches a detached browser unless one already answers on the port.
func Start(ctx context.Context, opts LaunchOptions) (*StartResult, error) {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = 15 * time.Second
	}

	client := NewClient(opts.Port)
	if info, err := client.Version(ctx); err == nil {
		return &StartResult{Version: info, AlreadyRunning: true}, nil
	}

	binary := opts.Binary
	if binary == "" {
		found, err := FindChrome()
		if err != nil {
			return nil, err
		}
		binary = found
	}
	if opts.ProfileDir == "" {
		return nil, errors.New("a profile directory is required")
	}
	if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create profile directory")
	}

	args := LaunchArgs(opts)
	logger.G(ctx).WithField("binary", binary).WithField("args", args).Debug("launching browser")

	cmd := exec.Command(binary, args...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", binary)
	}
	pid := cmd.Process.Pid
	// The browser must outlive this process.
	_ = cmd.Process.Release()

	info, err := waitReady(ctx, client, opts.ReadyTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "browser (pid %d) did not become ready on port %d", pid, opts.Port)
	}
	return &StartResult{Version: info, PID: pid}, nil
}

func waitReady(ctx context.Context, client *Client, timeout time.Duration) (*VersionInfo, error) {
	const interval = 250 * time.Millisecond
	attempts := uint(timeout / interval)
	if attempts == 0 {
		attempts = 1
	}

	var info *VersionInfo
	err := retry.Do(
		func() error {
			v, err := client.Version(ctx)
			if err != nil {
				return err
			}
			info = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	return info, err
}

// Stop kills every process whose command line carries the debugging port
// flag and returns their pids.
func Stop(ctx context.Context, port int) ([]int32, error) {
	if port == 0 {
		port = DefaultPort
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list processes")
	}

	self := int32(os.Getpid())
	var killed []int32
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || !hasPortFlag(cmdline, port) {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			logger.G(ctx).WithError(err).WithField("pid", p.Pid).Warn("failed to kill browser process")
			continue
		}
		killed = append(killed, p.Pid)
	}
	return killed, nil
}

func hasPortFlag(cmdline string, port int) bool {
	flag := portFlag(port)
	for _, field := range strings.Fields(cmdline) {
		if field == flag {
			return true
		}
	}
	return false
}
