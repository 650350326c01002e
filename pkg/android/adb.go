// Package android drives a device or emulator through the adb binary and
// auto-detects the target device and application package.
package android

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/shlex"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillbox/pkg/logger"
)

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. Stderr is folded into the returned error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(string(out))
		}
		return out, errors.Wrapf(err, "%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return out, nil
}

// ADB wraps adb invocations against a single device.
type ADB struct {
	runner Runner
	binary string
	serial string
}

// Option configures an ADB client.
type Option func(*ADB)

// WithRunner sets the command runner.
func WithRunner(r Runner) Option {
	return func(a *ADB) { a.runner = r }
}

// WithBinary overrides the adb executable path.
func WithBinary(path string) Option {
	return func(a *ADB) {
		if path != "" {
			a.binary = path
		}
	}
}

// WithSerial pins the device serial.
func WithSerial(serial string) Option {
	return func(a *ADB) { a.serial = serial }
}

// New creates an ADB client. The binary defaults to $ANDROID_HOME/platform-tools/adb
// when present, else "adb" on PATH.
func New(opts ...Option) *ADB {
	a := &ADB{
		runner: ExecRunner{},
		binary: defaultBinary(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultBinary() string {
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if root := os.Getenv(env); root != "" {
			candidate := root + "/platform-tools/adb"
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return "adb"
}

// Serial returns the device serial in use, empty until resolved.
func (a *ADB) Serial() string {
	return a.serial
}

// ResolveSerial picks the target device: an explicit serial, then
// ANDROID_SERIAL, then the single attached device.
func (a *ADB) ResolveSerial(ctx context.Context) (string, error) {
	if a.serial != "" {
		return a.serial, nil
	}
	if env := os.Getenv("ANDROID_SERIAL"); env != "" {
		a.serial = env
		return env, nil
	}

	devices, err := a.Devices(ctx)
	if err != nil {
		return "", err
	}
	serial, err := PickDevice(devices)
	if err != nil {
		return "", err
	}
	a.serial = serial
	logger.G(ctx).WithField("serial", serial).Debug("auto-selected device")
	return serial, nil
}

// Devices lists attached devices.
func (a *ADB) Devices(ctx context.Context) ([]Device, error) {
	out, err := a.runner.Run(ctx, a.binary, "devices", "-l")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list devices")
	}
	return ParseDevices(string(out)), nil
}

func (a *ADB) run(ctx context.Context, args ...string) ([]byte, error) {
	serial, err := a.ResolveSerial(ctx)
	if err != nil {
		return nil, err
	}
	full := append([]string{"-s", serial}, args...)
	logger.G(ctx).WithField("args", full).Debug("running adb")
	return a.runner.Run(ctx, a.binary, full...)
}

// Shell runs a shell command on the device.
func (a *ADB) Shell(ctx context.Context, args ...string) (string, error) {
	out, err := a.run(ctx, append([]string{"shell"}, args...)...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ShellLine splits a command line with shell quoting rules and runs it.
func (a *ADB) ShellLine(ctx context.Context, line string) (string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse shell command")
	}
	if len(args) == 0 {
		return "", errors.New("shell command is empty")
	}
	return a.Shell(ctx, args...)
}

// Screenshot captures the screen as PNG bytes.
func (a *ADB) Screenshot(ctx context.Context) ([]byte, error) {
	out, err := a.run(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, errors.Wrap(err, "failed to capture screenshot")
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG")) {
		return nil, errors.New("screencap did not return a PNG image")
	}
	return out, nil
}

// Install installs an APK, optionally replacing an existing install.
func (a *ADB) Install(ctx context.Context, apk string, replace bool) (string, error) {
	args := []string{"install"}
	if replace {
		args = append(args, "-r")
	}
	args = append(args, apk)
	out, err := a.run(ctx, args...)
	if err != nil {
		return "", errors.Wrap(err, "failed to install apk")
	}
	result := strings.TrimSpace(string(out))
	if strings.Contains(result, "Failure") {
		return "", errors.Errorf("install failed: %s", result)
	}
	return result, nil
}

// Uninstall removes a package.
func (a *ADB) Uninstall(ctx context.Context, pkg string) (string, error) {
	out, err := a.run(ctx, "uninstall", pkg)
	if err != nil {
		return "", errors.Wrapf(err, "failed to uninstall %s", pkg)
	}
	return strings.TrimSpace(string(out)), nil
}

// Launch starts the launcher activity of pkg.
func (a *ADB) Launch(ctx context.Context, pkg string) error {
	out, err := a.Shell(ctx, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return errors.Wrapf(err, "failed to launch %s", pkg)
	}
	if strings.Contains(out, "No activities found") {
		return errors.Errorf("no launchable activity found for %s", pkg)
	}
	return nil
}

// Stop force-stops pkg.
func (a *ADB) Stop(ctx context.Context, pkg string) error {
	_, err := a.Shell(ctx, "am", "force-stop", pkg)
	return errors.Wrapf(err, "failed to stop %s", pkg)
}

// Clear wipes the data of pkg.
func (a *ADB) Clear(ctx context.Context, pkg string) error {
	out, err := a.Shell(ctx, "pm", "clear", pkg)
	if err != nil {
		return errors.Wrapf(err, "failed to clear %s", pkg)
	}
	if !strings.Contains(out, "Success") {
		return errors.Errorf("pm clear %s: %s", pkg, strings.TrimSpace(out))
	}
	return nil
}

// Packages lists installed packages, optionally filtered by a glob pattern.
func (a *ADB) Packages(ctx context.Context, pattern string) ([]string, error) {
	var matcher glob.Glob
	if pattern != "" {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid package filter %q", pattern)
		}
		matcher = g
	}

	out, err := a.Shell(ctx, "pm", "list", "packages")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list packages")
	}

	var pkgs []string
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "package:"))
		if name == "" {
			continue
		}
		if matcher != nil && !matcher.Match(name) {
			continue
		}
		pkgs = append(pkgs, name)
	}
	return pkgs, nil
}

// PID returns the process id of a running package.
func (a *ADB) PID(ctx context.Context, pkg string) (int, error) {
	out, err := a.Shell(ctx, "pidof", pkg)
	if err != nil {
		return 0, errors.Wrapf(err, "%s is not running", pkg)
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, errors.Errorf("%s is not running", pkg)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected pidof output %q", out)
	}
	return pid, nil
}

// Logcat dumps the last lines of the log buffer, restricted to pid when non-zero.
func (a *ADB) Logcat(ctx context.Context, lines, pid int) (string, error) {
	args := []string{"logcat", "-d"}
	if lines > 0 {
		args = append(args, "-t", strconv.Itoa(lines))
	}
	if pid > 0 {
		args = append(args, "--pid", strconv.Itoa(pid))
	}
	out, err := a.run(ctx, args...)
	if err != nil {
		return "", errors.Wrap(err, "failed to read logcat")
	}
	return string(out), nil
}

// Tap taps the screen at x,y.
func (a *ADB) Tap(ctx context.Context, x, y int) error {
	_, err := a.Shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return errors.Wrap(err, "failed to tap")
}

// Swipe swipes from x1,y1 to x2,y2 over durationMs milliseconds.
func (a *ADB) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	args := []string{"input", "swipe", strconv.Itoa(x1), strconv.Itoa(y1), strconv.Itoa(x2), strconv.Itoa(y2)}
	if durationMs > 0 {
		args = append(args, strconv.Itoa(durationMs))
	}
	_, err := a.Shell(ctx, args...)
	return errors.Wrap(err, "failed to swipe")
}

// Text types text into the focused field.
func (a *ADB) Text(ctx context.Context, text string) error {
	for _, chunk := range InputTextChunks(text) {
		if _, err := a.Shell(ctx, "input", "text", EscapeInputText(chunk)); err != nil {
			return errors.Wrap(err, "failed to input text")
		}
	}
	return nil
}

// Key sends a key event, either a numeric code or a KEYCODE_* name.
func (a *ADB) Key(ctx context.Context, key string) error {
	_, err := a.Shell(ctx, "input", "keyevent", NormalizeKeycode(key))
	return errors.Wrap(err, "failed to send key event")
}

// UIDump returns the current view hierarchy XML.
func (a *ADB) UIDump(ctx context.Context) (string, error) {
	const dumpPath = "/sdcard/window_dump.xml"
	if _, err := a.Shell(ctx, "uiautomator", "dump", dumpPath); err != nil {
		return "", errors.Wrap(err, "failed to dump ui hierarchy")
	}
	out, err := a.Shell(ctx, "cat", dumpPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to read ui dump")
	}
	return out, nil
}

var shellSpecial = regexp.MustCompile(`([\\'"()<>|;&*~$` + "`" + `])`)

// InputTextChunks splits text so that no chunk contains a literal "%s".
// `input text` always reads %s as a space and has no escape for it, so the
// '%' and the 's' have to be typed by separate calls.
func InputTextChunks(text string) []string {
	var chunks []string
	for {
		i := strings.Index(text, "%s")
		if i < 0 {
			return append(chunks, text)
		}
		chunks = append(chunks, text[:i+1])
		text = text[i+1:]
	}
}

// EscapeInputText escapes one chunk for `input text`: spaces become %s and
// shell metacharacters are backslash-escaped. A '%' followed by a space is
// safe because the device only rewrites the %s that directly precedes it.
func EscapeInputText(text string) string {
	escaped := shellSpecial.ReplaceAllString(text, `\$1`)
	return strings.ReplaceAll(escaped, " ", "%s")
}

// NormalizeKeycode accepts "66", "enter" or "KEYCODE_ENTER" and returns the
// form understood by `input keyevent`.
func NormalizeKeycode(key string) string {
	key = strings.TrimSpace(key)
	if _, err := strconv.Atoi(key); err == nil {
		return key
	}
	upper := strings.ToUpper(key)
	if strings.HasPrefix(upper, "KEYCODE_") {
		return upper
	}
	return fmt.Sprintf("KEYCODE_%s", upper)
}
