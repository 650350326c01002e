package android

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeRunner returns canned output keyed by the joined argument list.
type fakeRunner struct {
	calls   []call
	outputs map[string]string
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	key := strings.Join(args, " ")
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return []byte(f.outputs[key]), nil
}

func (f *fakeRunner) last() call {
	return f.calls[len(f.calls)-1]
}

const devicesOutput = `List of devices attached
emulator-5554          device product:sdk_gphone64_arm64 model:sdk_gphone64_arm64 device:emu64a transport_id:1

`

func TestResolveSerial_AutoDetect(t *testing.T) {
	t.Setenv("ANDROID_SERIAL", "")
	runner := newFakeRunner()
	runner.outputs["devices -l"] = devicesOutput

	adb := New(WithRunner(runner), WithBinary("adb"))
	serial, err := adb.ResolveSerial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", serial)
	assert.Equal(t, "emulator-5554", adb.Serial())
}

func TestResolveSerial_Env(t *testing.T) {
	t.Setenv("ANDROID_SERIAL", "R58M123")
	runner := newFakeRunner()

	adb := New(WithRunner(runner))
	serial, err := adb.ResolveSerial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "R58M123", serial)
	assert.Empty(t, runner.calls)
}

func TestResolveSerial_ExplicitWins(t *testing.T) {
	t.Setenv("ANDROID_SERIAL", "R58M123")

	adb := New(WithRunner(newFakeRunner()), WithSerial("emulator-5556"))
	serial, err := adb.ResolveSerial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "emulator-5556", serial)
}

func TestShellCommandsTargetSerial(t *testing.T) {
	runner := newFakeRunner()
	adb := New(WithRunner(runner), WithBinary("/sdk/adb"), WithSerial("emulator-5554"))
	ctx := context.Background()

	require.NoError(t, adb.Tap(ctx, 100, 200))
	assert.Equal(t, call{"/sdk/adb", []string{"-s", "emulator-5554", "shell", "input", "tap", "100", "200"}}, runner.last())

	require.NoError(t, adb.Swipe(ctx, 1, 2, 3, 4, 300))
	assert.Equal(t, []string{"-s", "emulator-5554", "shell", "input", "swipe", "1", "2", "3", "4", "300"}, runner.last().args)

	require.NoError(t, adb.Key(ctx, "enter"))
	assert.Equal(t, []string{"-s", "emulator-5554", "shell", "input", "keyevent", "KEYCODE_ENTER"}, runner.last().args)

	require.NoError(t, adb.Text(ctx, "hello world"))
	assert.Equal(t, []string{"-s", "emulator-5554", "shell", "input", "text", "hello%sworld"}, runner.last().args)

	require.NoError(t, adb.Stop(ctx, "com.example.app"))
	assert.Equal(t, []string{"-s", "emulator-5554", "shell", "am", "force-stop", "com.example.app"}, runner.last().args)
}

func TestShellLine(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs[`-s emulator-5554 shell settings put global animator_duration_scale 0`] = ""
	adb := New(WithRunner(runner), WithSerial("emulator-5554"))

	_, err := adb.ShellLine(context.Background(), `settings put global "animator_duration_scale" 0`)
	require.NoError(t, err)
	assert.Equal(t, []string{"-s", "emulator-5554", "shell", "settings", "put", "global", "animator_duration_scale", "0"}, runner.last().args)

	_, err = adb.ShellLine(context.Background(), "   ")
	assert.Error(t, err)
}

func TestScreenshot(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["-s emu exec-out screencap -p"] = "\x89PNG\r\n\x1a\nrest"
	adb := New(WithRunner(runner), WithSerial("emu"))

	data, err := adb.Screenshot(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\x89PNG"))

	runner.outputs["-s emu exec-out screencap -p"] = "error: closed"
	_, err = adb.Screenshot(context.Background())
	assert.Error(t, err)
}

func TestInstall(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["-s emu install -r app.apk"] = "Performing Streamed Install\nSuccess\n"
	adb := New(WithRunner(runner), WithSerial("emu"))

	out, err := adb.Install(context.Background(), "app.apk", true)
	require.NoError(t, err)
	assert.Contains(t, out, "Success")

	runner.outputs["-s emu install app.apk"] = "Failure [INSTALL_FAILED_VERSION_DOWNGRADE]"
	_, err = adb.Install(context.Background(), "app.apk", false)
	assert.ErrorContains(t, err, "INSTALL_FAILED_VERSION_DOWNGRADE")
}

func TestLaunch_NoActivity(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["-s emu shell monkey -p com.x -c android.intent.category.LAUNCHER 1"] = "** No activities found to run, monkey aborted."
	adb := New(WithRunner(runner), WithSerial("emu"))

	assert.ErrorContains(t, adb.Launch(context.Background(), "com.x"), "no launchable activity")
}

func TestClear(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["-s emu shell pm clear com.x"] = "Success\n"
	adb := New(WithRunner(runner), WithSerial("emu"))
	require.NoError(t, adb.Clear(context.Background(), "com.x"))

	runner.outputs["-s emu shell pm clear com.x"] = "Failed\n"
	assert.Error(t, adb.Clear(context.Background(), "com.x"))
}

func TestPackages_Filter(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["-s emu shell pm list packages"] = "package:com.android.chrome\npackage:com.example.app\npackage:com.example.app.test\n\n"
	adb := New(WithRunner(runner), WithSerial("emu"))

	all, err := adb.Packages(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := adb.Packages(context.Background(), "com.example.*")
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.app"}, filtered)

	filtered, err = adb.Packages(context.Background(), "com.example.**")
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.app", "com.example.app.test"}, filtered)
}

func TestPIDAndLogcat(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["-s emu shell pidof com.x"] = "4242\n"
	runner.outputs["-s emu logcat -d -t 50 --pid 4242"] = "I/App: started\n"
	adb := New(WithRunner(runner), WithSerial("emu"))
	ctx := context.Background()

	pid, err := adb.PID(ctx, "com.x")
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	logs, err := adb.Logcat(ctx, 50, pid)
	require.NoError(t, err)
	assert.Equal(t, "I/App: started\n", logs)

	runner.outputs["-s emu shell pidof com.y"] = ""
	_, err = adb.PID(ctx, "com.y")
	assert.ErrorContains(t, err, "not running")
}

func TestUIDump(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["-s emu shell cat /sdcard/window_dump.xml"] = "<hierarchy/>"
	adb := New(WithRunner(runner), WithSerial("emu"))

	out, err := adb.UIDump(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<hierarchy/>", out)
	assert.Equal(t, []string{"-s", "emu", "shell", "uiautomator", "dump", "/sdcard/window_dump.xml"}, runner.calls[0].args)
}

func TestRunnerErrorPropagates(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["devices -l"] = errors.New("adb: command not found")
	t.Setenv("ANDROID_SERIAL", "")

	_, err := New(WithRunner(runner)).Shell(context.Background(), "ls")
	assert.ErrorContains(t, err, "command not found")
}

func TestText_LiteralPercentS(t *testing.T) {
	runner := newFakeRunner()
	adb := New(WithRunner(runner), WithBinary("adb"), WithSerial("emulator-5554"))

	require.NoError(t, adb.Text(context.Background(), "use %s here"))

	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{"-s", "emulator-5554", "shell", "input", "text", "use%s%"}, runner.calls[0].args)
	assert.Equal(t, []string{"-s", "emulator-5554", "shell", "input", "text", "s%shere"}, runner.calls[1].args)
}

func TestInputTextChunks(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"hello world", []string{"hello world"}},
		{"", []string{""}},
		{"%s", []string{"%", "s"}},
		{"50% off", []string{"50% off"}},
		{"a%sb%sc", []string{"a%", "sb%", "sc"}},
		{"%%s", []string{"%%", "s"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InputTextChunks(tt.text), tt.text)
		for _, chunk := range tt.want {
			assert.NotContains(t, chunk, "%s")
		}
	}
}

func TestEscapeInputText(t *testing.T) {
	assert.Equal(t, "hello%sworld", EscapeInputText("hello world"))
	assert.Equal(t, `it\'s%s\(fine\)`, EscapeInputText("it's (fine)"))
	assert.Equal(t, `a\&b`, EscapeInputText("a&b"))
}

func TestNormalizeKeycode(t *testing.T) {
	assert.Equal(t, "66", NormalizeKeycode("66"))
	assert.Equal(t, "KEYCODE_BACK", NormalizeKeycode("back"))
	assert.Equal(t, "KEYCODE_HOME", NormalizeKeycode("KEYCODE_HOME"))
	assert.Equal(t, "KEYCODE_VOLUME_UP", NormalizeKeycode(" keycode_volume_up "))
}
