// Package templates serves the read-only catalog of assistant templates
// shipped as YAML files in a directory.
package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
)

// ErrNotFound is returned when no template has the requested id
var ErrNotFound = errors.New("template not found")

// Template is one catalog entry. ID is the file name without extension.
type Template struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content"`
}

type document struct {
	Metadata struct {
		Description struct {
			Title   string `yaml:"title"`
			Summary string `yaml:"summary"`
		} `yaml:"description"`
		Tags []string `yaml:"tags"`
	} `yaml:"metadata"`
}

var extensions = []string{".yaml", ".yml"}

// Catalog reads templates from dir on every call so that edits show up
// without a restart.
type Catalog struct {
	dir    string
	logger *observability.Logger
}

// NewCatalog creates a catalog over dir
func NewCatalog(dir string, logger *observability.Logger) *Catalog {
	return &Catalog{dir: dir, logger: logger}
}

// List returns every readable template ordered by id. A missing directory is
// an empty catalog; unreadable or malformed files are logged and skipped.
func (c *Catalog) List() ([]Template, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Template{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	templates := make([]Template, 0, len(entries))
	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := templateID(entry.Name())
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			c.logger.WithField("file", entry.Name()).Warn("Duplicate template id, skipping")
			continue
		}

		tmpl, err := c.load(id, filepath.Join(c.dir, entry.Name()))
		if err != nil {
			c.logger.WithError(err).WithField("file", entry.Name()).Warn("Skipping unreadable template")
			continue
		}
		seen[id] = struct{}{}
		templates = append(templates, *tmpl)
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

// Get returns the template with the given id
func (c *Catalog) Get(id string) (*Template, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	for _, ext := range extensions {
		path := filepath.Join(c.dir, id+ext)
		tmpl, err := c.load(id, path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return tmpl, nil
	}
	return nil, ErrNotFound
}

func (c *Catalog) load(id, path string) (*Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", id, err)
	}

	title := doc.Metadata.Description.Title
	if title == "" {
		title = "Untitled"
	}
	tags := doc.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}

	return &Template{
		ID:          id,
		Title:       title,
		Description: doc.Metadata.Description.Summary,
		Tags:        tags,
		Content:     string(content),
	}, nil
}

func templateID(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range extensions {
		if ext == allowed {
			return strings.TrimSuffix(name, filepath.Ext(name)), true
		}
	}
	return "", false
}

// validID rejects ids that could escape the templates directory
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
