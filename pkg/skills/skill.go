// Package skills describes the command groups skillbox ships. Each skill is a
// directory holding a SKILL.md file whose YAML frontmatter names and
// describes it and whose body documents how to use it. The built-in skills are
// embedded in the binary; users can add or override skills in their own
// skill directories.
package skills

// SourceBuiltin marks skills embedded in the binary.
const SourceBuiltin = "builtin"

// Skill represents a discovered skill with its metadata
type Skill struct {
	Name        string // Unique name from frontmatter
	Description string
	// Source is SourceBuiltin or the directory the skill was loaded from.
	Source  string
	Content string // Body of SKILL.md, without frontmatter
}

// IsBuiltin reports whether the skill ships with the binary.
func (s *Skill) IsBuiltin() bool {
	return s.Source == SourceBuiltin
}
