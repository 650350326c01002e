package android

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Detection describes where an application id was found.
type Detection struct {
	Package string `json:"package"`
	Source  string `json:"source"`
	Field   string `json:"field"`
}

var (
	applicationIDPattern = regexp.MustCompile(`\bapplicationId\s*(?:=\s*)?["']([A-Za-z][\w.]*)["']`)
	namespacePattern     = regexp.MustCompile(`\bnamespace\s*(?:=\s*)?["']([A-Za-z][\w.]*)["']`)
	appPluginPattern     = regexp.MustCompile(`com\.android\.application|plugins\.android\.application`)
	manifestPattern      = regexp.MustCompile(`<manifest[^>]*\spackage\s*=\s*"([A-Za-z][\w.]*)"`)
)

var ignoredDirs = []string{"build", ".gradle", ".git", "node_modules", ".idea"}

type gradleFile struct {
	rel     string
	content string
	app     bool
}

// DetectPackage scans an Android project for the application id.
//
// Order of preference: applicationId in an application module, any
// applicationId, namespace in an application module, any namespace, and the
// package attribute of an AndroidManifest.xml.
func DetectPackage(root string) (*Detection, error) {
	fsys := os.DirFS(root)

	gradlePaths, err := findFiles(fsys, "**/build.gradle*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to search for gradle files")
	}

	var files []gradleFile
	for _, rel := range gradlePaths {
		if base := path.Base(rel); base != "build.gradle" && base != "build.gradle.kts" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		content := string(raw)
		files = append(files, gradleFile{rel: rel, content: content, app: appPluginPattern.MatchString(content)})
	}

	// Application modules first, then shallower paths.
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].app != files[j].app {
			return files[i].app
		}
		return strings.Count(files[i].rel, "/") < strings.Count(files[j].rel, "/")
	})

	for _, field := range []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"applicationId", applicationIDPattern},
		{"namespace", namespacePattern},
	} {
		for _, f := range files {
			if m := field.pattern.FindStringSubmatch(f.content); m != nil {
				return &Detection{Package: m[1], Source: f.rel, Field: field.name}, nil
			}
		}
	}

	manifests, err := findFiles(fsys, "**/AndroidManifest.xml")
	if err != nil {
		return nil, errors.Wrap(err, "failed to search for manifests")
	}
	for _, rel := range manifests {
		raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		if m := manifestPattern.FindStringSubmatch(string(raw)); m != nil {
			return &Detection{Package: m[1], Source: rel, Field: "package"}, nil
		}
	}

	return nil, errors.Errorf("could not detect an application id under %s; pass --package", root)
}

// findFiles returns the sorted files matching pattern, without descending
// into ignoredDirs.
func findFiles(fsys fs.FS, pattern string) ([]string, error) {
	var matches []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if p != "." && slices.Contains(ignoredDirs, d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if ok, _ := doublestar.Match(pattern, p); ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
