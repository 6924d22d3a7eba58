package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultData []byte

//go:embed schema.json
var schemaJSON string

var catalogSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
})

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultData)
})

// Default returns the built-in OGE mathematics catalog.
func Default() (*Catalog, error) {
	return defaultCatalog()
}

// Load reads and validates a catalog data file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	slog.Info("catalog loaded", "path", path, "topics", c.Len())
	return c, nil
}

// Parse decodes a YAML catalog document, checks it against the catalog
// schema and builds the catalog. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog document is empty")
		}
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	if err := validate(f); err != nil {
		return nil, err
	}

	return New(f.Topics, f.Theory)
}

func validate(f file) error {
	schema, err := catalogSchema()
	if err != nil {
		return fmt.Errorf("compiling catalog schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(f))
	if err != nil {
		return fmt.Errorf("validating catalog: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid catalog: %s", strings.Join(msgs, "; "))
}
