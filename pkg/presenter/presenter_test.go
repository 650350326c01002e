package presenter

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOptions(t *testing.T) {
	var output, errorOutput bytes.Buffer
	p := NewWithOptions(&output, &errorOutput, ColorNever)

	assert.Equal(t, &output, p.output)
	assert.Equal(t, &errorOutput, p.errorOutput)
	assert.Equal(t, ColorNever, p.colorMode)
	assert.False(t, p.IsQuiet())
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		color    string
		expected ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"SKILLBOX_COLOR always", "", "always", ColorAlways},
		{"SKILLBOX_COLOR force", "", "force", ColorAlways},
		{"SKILLBOX_COLOR never", "", "never", ColorNever},
		{"SKILLBOX_COLOR off", "", "off", ColorNever},
		{"default", "", "", ColorAuto},
		{"invalid", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("NO_COLOR")
			os.Unsetenv("SKILLBOX_COLOR")
			defer os.Unsetenv("NO_COLOR")
			defer os.Unsetenv("SKILLBOX_COLOR")

			if tt.noColor != "" {
				os.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.color != "" {
				os.Setenv("SKILLBOX_COLOR", tt.color)
			}

			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	var errorOutput bytes.Buffer
	p := NewWithOptions(nil, &errorOutput, ColorNever)

	p.Error(errors.New("boom"), "creating issue")
	assert.Equal(t, "[ERROR] creating issue: boom\n", errorOutput.String())

	errorOutput.Reset()
	p.Error(errors.New("boom"), "")
	assert.Equal(t, "[ERROR] boom\n", errorOutput.String())

	errorOutput.Reset()
	p.Error(nil, "context")
	assert.Empty(t, errorOutput.String())
}

func TestErrorIgnoresQuiet(t *testing.T) {
	var errorOutput bytes.Buffer
	p := NewWithOptions(nil, &errorOutput, ColorNever)
	p.SetQuiet(true)

	p.Error(errors.New("boom"), "")
	assert.Contains(t, errorOutput.String(), "boom")
}

func TestMessages(t *testing.T) {
	var output bytes.Buffer
	p := NewWithOptions(&output, nil, ColorNever)

	p.Success("saved")
	p.Warning("careful")
	p.Info("plain")

	result := output.String()
	assert.Contains(t, result, "✓ saved")
	assert.Contains(t, result, "⚠ careful")
	assert.Contains(t, result, "plain\n")
}

func TestQuietMode(t *testing.T) {
	var output bytes.Buffer
	p := NewWithOptions(&output, nil, ColorNever)
	p.SetQuiet(true)

	p.Success("saved")
	p.Warning("careful")
	p.Info("plain")
	p.Section("Title")
	p.Separator()
	p.Costs(&CostStats{Tool: "openai-image", TotalCost: 1})

	assert.Empty(t, output.String())
}

func TestSection(t *testing.T) {
	var output bytes.Buffer
	p := NewWithOptions(&output, nil, ColorNever)

	p.Section("Issues")

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Issues", lines[0])
	assert.Equal(t, "------", lines[1])
}

func TestCosts(t *testing.T) {
	var output bytes.Buffer
	p := NewWithOptions(&output, nil, ColorNever)

	p.Costs(&CostStats{Tool: "gemini-image", TotalCost: 0.078, ImageCount: 2, LastCost: 0.039})
	assert.Equal(t, "[Cost Stats] gemini-image | This run: $0.0390 | Total: $0.0780 | Images: 2\n", output.String())

	output.Reset()
	p.Costs(&CostStats{Tool: "gemini-image"})
	assert.Equal(t, "[Cost Stats] gemini-image | Total: $0.0000 | Images: 0\n", output.String())

	output.Reset()
	p.Costs(nil)
	assert.Empty(t, output.String())
}
