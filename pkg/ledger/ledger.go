// Package ledger keeps the per-tool cost ledger of the image-generation
// skills: a small JSON file with the running estimated spend, the number of
// generated images and the most recent generation records.
//
// Every mutation is a locked read-modify-write on the file, so concurrent
// invocations serialize instead of overwriting each other.
package ledger

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

const (
	// MaxHistory is the number of generation records kept.
	MaxHistory = 100
	// MaxPromptLength is the number of prompt characters stored per record.
	MaxPromptLength = 100
)

// Entry is a single generation record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	Size      string    `json:"size,omitempty"`
	Quality   string    `json:"quality,omitempty"`
	Images    int       `json:"images,omitempty"`
	Cost      float64   `json:"cost"`
}

// Data is the on-disk ledger document.
type Data struct {
	TotalCost  float64 `json:"totalCost"`
	ImageCount int     `json:"imageCount"`
	History    []Entry `json:"history"`
}

// Ledger is a cost ledger file.
type Ledger struct {
	path string
	now  func() time.Time
}

// New returns the ledger for tool stored under dir.
func New(dir, tool string) *Ledger {
	return &Ledger{
		path: filepath.Join(dir, tool+".json"),
		now:  time.Now,
	}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Load returns the current ledger contents. A missing or unparsable file
// yields an empty ledger.
func (l *Ledger) Load() (*Data, error) {
	raw, err := lockedfile.Read(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty(), nil
		}
		return nil, errors.Wrap(err, "failed to read cost ledger")
	}
	return decode(raw), nil
}

// Record appends entry and updates the totals. An entry without a timestamp
// gets the current time; Images defaults to 1.
func (l *Ledger) Record(entry Entry) (*Data, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	if entry.Images <= 0 {
		entry.Images = 1
	}
	if entry.Cost < 0 {
		entry.Cost = 0
	}
	entry.Prompt = TruncatePrompt(entry.Prompt)

	return l.update(func(d *Data) {
		d.TotalCost += entry.Cost
		d.ImageCount += entry.Images
		d.History = append(d.History, entry)
		if len(d.History) > MaxHistory {
			d.History = append([]Entry(nil), d.History[len(d.History)-MaxHistory:]...)
		}
	})
}

// Reset clears totals and history.
func (l *Ledger) Reset() error {
	_, err := l.update(func(d *Data) {
		*d = *empty()
	})
	return err
}

// Recent returns up to n of the most recent entries, newest first.
func (d *Data) Recent(n int) []Entry {
	if n <= 0 || n > len(d.History) {
		n = len(d.History)
	}
	out := make([]Entry, 0, n)
	for i := len(d.History) - 1; i >= len(d.History)-n; i-- {
		out = append(out, d.History[i])
	}
	return out
}

func (l *Ledger) update(mutate func(*Data)) (*Data, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create ledger directory")
	}

	f, err := lockedfile.Edit(l.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cost ledger")
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cost ledger")
	}

	data := decode(raw)
	mutate(data)

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode cost ledger")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to rewind cost ledger")
	}
	if err := f.Truncate(0); err != nil {
		return nil, errors.Wrap(err, "failed to truncate cost ledger")
	}
	if _, err := f.Write(append(out, '\n')); err != nil {
		return nil, errors.Wrap(err, "failed to write cost ledger")
	}
	return data, nil
}

func decode(raw []byte) *Data {
	if len(bytes.TrimSpace(raw)) == 0 {
		return empty()
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return empty()
	}
	if d.History == nil {
		d.History = []Entry{}
	}
	return &d
}

func empty() *Data {
	return &Data{History: []Entry{}}
}

// TruncatePrompt shortens a prompt to MaxPromptLength characters.
func TruncatePrompt(prompt string) string {
	if utf8.RuneCountInString(prompt) <= MaxPromptLength {
		return prompt
	}
	runes := []rune(prompt)
	return string(runes[:MaxPromptLength]) + "..."
}
