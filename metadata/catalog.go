package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"album-publisher/types"
)

// ErrNotFound is returned when no metadata document exists for a slug
var ErrNotFound = errors.New("metadata not found")

// Catalog reads the per-slug YouTube metadata documents.
// Videos live in <dir>/<slug>.json, shorts in <dir>/shorts/<slug>.json.
type Catalog struct {
	dir      string
	validate *validator.Validate
}

// New creates a Catalog rooted at dir
func New(dir string) *Catalog {
	return &Catalog{dir: dir, validate: validator.New()}
}

func (c *Catalog) typeDir(t types.ContentType) string {
	if t == types.Short {
		return filepath.Join(c.dir, "shorts")
	}
	return c.dir
}

// Path is where the document for slug is expected
func (c *Catalog) Path(t types.ContentType, slug string) string {
	return filepath.Join(c.typeDir(t), slug+".json")
}

// Get loads the document for slug. A missing file wraps ErrNotFound.
func (c *Catalog) Get(t types.ContentType, slug string) (*types.ContentMetadata, error) {
	path := c.Path(t, slug)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	return c.decode(path, data)
}

// List loads every document of the given type, sorted by file name
func (c *Catalog) List(t types.ContentType) ([]types.ContentMetadata, error) {
	dir := c.typeDir(t)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read metadata dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]types.ContentMetadata, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		doc, err := c.decode(path, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (c *Catalog) decode(path string, data []byte) (*types.ContentMetadata, error) {
	var doc types.ContentMetadata
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &doc, nil
}
