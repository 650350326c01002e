package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillbox/pkg/ledger"
)

func TestAndroidConfigFromFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected *AndroidConfig
	}{
		{
			name:     "defaults",
			args:     []string{},
			expected: &AndroidConfig{ProjectDir: "."},
		},
		{
			name:     "short flags",
			args:     []string{"-s", "emulator-5554", "-p", "com.example.app"},
			expected: &AndroidConfig{Serial: "emulator-5554", Package: "com.example.app", ProjectDir: "."},
		},
		{
			name:     "project dir",
			args:     []string{"--dir", "/src/app"},
			expected: &AndroidConfig{ProjectDir: "/src/app"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test", Run: func(_ *cobra.Command, _ []string) {}}
			defaults := NewAndroidConfig()
			cmd.Flags().StringP("serial", "s", defaults.Serial, "")
			cmd.Flags().StringP("package", "p", defaults.Package, "")
			cmd.Flags().String("dir", defaults.ProjectDir, "")

			require.NoError(t, cmd.ParseFlags(tt.args))
			assert.Equal(t, tt.expected, getAndroidConfigFromFlags(cmd))
		})
	}
}

func TestLinearCreateConfigFromFlags(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test", Run: func(_ *cobra.Command, _ []string) {}}
		cmd.Flags().String("team", "", "")
		cmd.Flags().String("title", "", "")
		cmd.Flags().StringP("description", "d", "", "")
		cmd.Flags().Int("priority", 0, "")
		cmd.Flags().String("assignee", "", "")
		cmd.Flags().String("state", "", "")
		cmd.Flags().StringSlice("labels", nil, "")
		cmd.Flags().StringSlice("image", nil, "")
		cmd.Flags().Int("image-kb", 90, "")
		cmd.Flags().StringSlice("attach", nil, "")
		return cmd
	}

	t.Run("priority unset", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--team", "ENG", "--title", "Crash"}))

		config := getLinearCreateConfigFromFlags(cmd)
		assert.Equal(t, "ENG", config.Team)
		assert.Equal(t, "Crash", config.Title)
		assert.Equal(t, -1, config.Priority)
		assert.Equal(t, 90, config.ImageKB)
	})

	t.Run("repeated and comma separated lists", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.ParseFlags([]string{
			"--priority", "2",
			"--labels", "bug,ui",
			"--image", "a.png", "--image", "b.png",
			"--attach", "log.txt",
			"--image-kb", "50",
		}))

		config := getLinearCreateConfigFromFlags(cmd)
		assert.Equal(t, 2, config.Priority)
		assert.Equal(t, []string{"bug", "ui"}, config.Labels)
		assert.Equal(t, []string{"a.png", "b.png"}, config.Images)
		assert.Equal(t, []string{"log.txt"}, config.Attachments)
		assert.Equal(t, 50, config.ImageKB)
	})
}

func TestPriorityFlag(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test", Run: func(_ *cobra.Command, _ []string) {}}
		cmd.Flags().Int("priority", 0, "")
		return cmd
	}

	cmd := newCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	p, err := priorityFlag(cmd)
	require.NoError(t, err)
	assert.Nil(t, p)

	cmd = newCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--priority", "0"}))
	p, err = priorityFlag(cmd)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 0, *p)

	cmd = newCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--priority", "7"}))
	_, err = priorityFlag(cmd)
	assert.Error(t, err)
}

func TestGeminiImageConfigFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test", Run: func(_ *cobra.Command, _ []string) {}}
	defaults := NewGeminiImageConfig()
	cmd.Flags().String("model", defaults.Model, "")
	cmd.Flags().String("aspect", "", "")
	cmd.Flags().StringSlice("ref", nil, "")
	cmd.Flags().Int("ref-kb", defaults.RefKB, "")
	cmd.Flags().String("out-dir", "", "")

	require.NoError(t, cmd.ParseFlags([]string{"--aspect", "16:9", "--ref", "a.png,b.jpg"}))

	config := getGeminiImageConfigFromFlags(cmd)
	assert.Equal(t, "gemini-2.5-flash-image", config.Model)
	assert.Equal(t, "16:9", config.Aspect)
	assert.Equal(t, []string{"a.png", "b.jpg"}, config.References)
	assert.Equal(t, 900, config.RefKB)
}

func TestParseInts(t *testing.T) {
	n, err := parseInts([]string{"10", "-20", "300"})
	require.NoError(t, err)
	assert.Equal(t, []int{10, -20, 300}, n)

	_, err = parseInts([]string{"10", "x"})
	assert.EqualError(t, err, `"x" is not an integer`)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "shot.png", outputPath("shot.png", "android", "image/png"))

	viper.Set("output_dir", "/tmp/out")
	defer viper.Set("output_dir", "")

	path := outputPath("", "android", "image/png")
	assert.Equal(t, "/tmp/out", filepath.Dir(path))
	assert.Regexp(t, `^android-\d{8}-\d{6}-[0-9a-f]{8}\.png$`, filepath.Base(path))
}

func TestWriteOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.bin")
	require.NoError(t, writeOutputFile(path, []byte("data")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestCostsCommand(t *testing.T) {
	dir := t.TempDir()
	viper.Set("ledger_dir", dir)
	defer viper.Set("ledger_dir", "")

	l := ledger.New(dir, "test-tool")
	_, err := l.Record(ledger.Entry{Prompt: "a red fox", Model: "model-a", Cost: 0.04})
	require.NoError(t, err)
	_, err = l.Record(ledger.Entry{Prompt: "a blue whale", Model: "model-b", Cost: 0.02})
	require.NoError(t, err)

	t.Run("history", func(t *testing.T) {
		cmd := newCostsCmd("test-tool")
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--history", "1"})
		require.NoError(t, cmd.Execute())

		assert.Contains(t, out.String(), "a blue whale")
		assert.NotContains(t, out.String(), "a red fox")
		assert.Contains(t, out.String(), "$0.0200")
	})

	t.Run("reset", func(t *testing.T) {
		cmd := newCostsCmd("test-tool")
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"--reset"})
		require.NoError(t, cmd.Execute())

		data, err := l.Load()
		require.NoError(t, err)
		assert.Zero(t, data.TotalCost)
		assert.Zero(t, data.ImageCount)
		assert.Empty(t, data.History)
	})
}

func TestCommandTree(t *testing.T) {
	want := map[string][]string{
		"android":      {"devices", "detect", "screenshot", "install", "uninstall", "launch", "stop", "clear", "packages", "logcat", "tap", "swipe", "text", "key", "ui-dump", "shell"},
		"browser":      {"start", "stop", "tabs", "nav", "eval", "screenshot", "content"},
		"linear":       {"me", "teams", "states", "projects", "issues", "issue", "search", "create", "update", "comment"},
		"jina":         {"read", "search"},
		"gemini-image": {"generate", "costs"},
		"openai-image": {"generate", "edit", "costs"},
		"image":        {"fit"},
		"skill":        {"list", "show"},
	}

	for group, subs := range want {
		t.Run(group, func(t *testing.T) {
			for _, sub := range subs {
				found, _, err := rootCmd.Find([]string{group, sub})
				require.NoError(t, err)
				assert.Equal(t, sub, found.Name())
			}
		})
	}
}
