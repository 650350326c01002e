package skills

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const skillFileName = "SKILL.md"

//go:embed builtin
var builtinFS embed.FS

// Discovery handles skill discovery from configured directories
type Discovery struct {
	skillDirs []string
	builtin   fs.FS
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories, highest precedence first
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = dirs
		return nil
	}
}

// WithBuiltin replaces the embedded skills, mostly for tests. A nil fs
// disables built-ins.
func WithBuiltin(fsys fs.FS) Option {
	return func(d *Discovery) error {
		d.builtin = fsys
		return nil
	}
}

// WithDefaultDirs initializes with default skill directories
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.skillDirs = []string{
			"./.skillbox/skills", // Repo-local (highest precedence)
			filepath.Join(homeDir, ".skillbox", "skills"),
		}
		return nil
	}
}

// NewDiscovery creates a new skill discovery instance
func NewDiscovery(opts ...Option) (*Discovery, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open built-in skills")
	}
	d := &Discovery{builtin: sub}

	if len(opts) == 0 {
		opts = []Option{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// DiscoverSkills finds all available skills. User directories are scanned
// first so their skills shadow built-ins of the same name.
func (d *Discovery) DiscoverSkills() (map[string]*Skill, error) {
	skills := make(map[string]*Skill)

	for _, dir := range d.skillDirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		discoverFromFS(os.DirFS(dir), dir, skills)
	}

	if d.builtin != nil {
		discoverFromFS(d.builtin, SourceBuiltin, skills)
	}

	return skills, nil
}

func discoverFromFS(fsys fs.FS, source string, skills map[string]*Skill) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return
	}

	for _, entry := range entries {
		info, err := fs.Stat(fsys, entry.Name())
		if err != nil || !info.IsDir() {
			continue
		}

		skill, err := loadSkill(fsys, path.Join(entry.Name(), skillFileName))
		if err != nil {
			continue
		}

		if _, exists := skills[skill.Name]; !exists {
			skill.Source = source
			if source != SourceBuiltin {
				skill.Source = filepath.Join(source, entry.Name())
			}
			skills[skill.Name] = skill
		}
	}
}

// GetSkill returns a specific skill by name
func (d *Discovery) GetSkill(name string) (*Skill, error) {
	skills, err := d.DiscoverSkills()
	if err != nil {
		return nil, err
	}

	skill, exists := skills[name]
	if !exists {
		return nil, errors.Errorf("skill '%s' not found", name)
	}

	return skill, nil
}

// List returns every skill sorted by name.
func (d *Discovery) List() ([]*Skill, error) {
	skills, err := d.DiscoverSkills()
	if err != nil {
		return nil, err
	}

	list := make([]*Skill, 0, len(skills))
	for _, s := range skills {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// loadSkill loads a single skill from its SKILL.md file
func loadSkill(fsys fs.FS, name string) (*Skill, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	skillName, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)

	if skillName == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}
	if description == "" {
		return nil, errors.New("skill description is required in frontmatter")
	}

	return &Skill{
		Name:        skillName,
		Description: description,
		Content:     extractBodyContent(string(content)),
	}, nil
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}
