package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name looked up in a solution root.
const ManifestFile = "symwalk.yaml"

// Manifest describes a solution on disk.
type Manifest struct {
	Name     string         `yaml:"name"`
	Projects []ProjectSpec  `yaml:"projects"`
	Analysis AnalysisConfig `yaml:"analysis,omitempty"`
}

// ProjectSpec names one project of a manifest. Dir is relative to the
// solution root.
type ProjectSpec struct {
	Name     string   `yaml:"name"`
	Dir      string   `yaml:"dir,omitempty"`
	Language string   `yaml:"language"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// AnalysisConfig holds engine settings that can be fixed per solution.
type AnalysisConfig struct {
	DirectMembersOnly bool `yaml:"direct_members_only,omitempty"`
	Workers           int  `yaml:"workers,omitempty"`
}

// LoadManifest reads and validates a YAML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(filepath.Dir(absOr(path)))
	}
	return m, nil
}

// ParseManifest decodes and validates manifest YAML. Unknown keys are
// rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate fills defaults and checks required fields.
func (m *Manifest) Validate() error {
	if len(m.Projects) == 0 {
		return errors.New("manifest declares no projects")
	}
	if m.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative, got %d", m.Analysis.Workers)
	}
	seen := make(map[string]bool)
	for i := range m.Projects {
		p := &m.Projects[i]
		if p.Language == "" {
			return fmt.Errorf("project %d: language is required", i)
		}
		if p.Dir == "" {
			p.Dir = "."
		}
		if p.Name == "" {
			p.Name = filepath.Base(filepath.Clean(p.Dir))
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate project name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// DefaultManifest describes a single-project solution rooted at dir. An
// empty language is detected from the directory contents.
func DefaultManifest(dir, language string) (*Manifest, error) {
	if language == "" {
		var err error
		if language, err = DetectLanguage(dir); err != nil {
			return nil, err
		}
	}
	name := filepath.Base(absOr(dir))
	m := &Manifest{
		Name:     name,
		Projects: []ProjectSpec{{Name: name, Dir: ".", Language: language}},
	}
	return m, m.Validate()
}

// FindManifest returns the manifest for dir: symwalk.yaml when present,
// otherwise a default single-project manifest.
func FindManifest(dir, language string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(path); err == nil {
		return LoadManifest(path)
	}
	return DefaultManifest(dir, language)
}

// DetectLanguage guesses the language of the project in dir from a go.mod
// file or the first .java source found.
func DetectLanguage(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return "go", nil
	}
	found := errors.New("found")
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Ext(path) == ".java" {
			return found
		}
		return nil
	})
	switch {
	case errors.Is(err, found):
		return "java", nil
	case err != nil:
		return "", fmt.Errorf("detect language: %w", err)
	}
	return "", fmt.Errorf("cannot detect language of %s: no go.mod or .java files", dir)
}

func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "testdata", "build", "target":
		return true
	}
	return len(name) > 1 && name[0] == '.'
}

func absOr(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
