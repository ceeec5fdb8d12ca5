package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jask/pyramidview/internal/database/repository"
	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
)

//go:embed sources.yaml
var defaultSources []byte

type seedFile struct {
	Sources []seedSource `yaml:"sources"`
}

type seedSource struct {
	Name        string          `yaml:"name"`
	Type        string          `yaml:"type"`
	URL         string          `yaml:"url"`
	Description string          `yaml:"description"`
	RGB         bool            `yaml:"rgb"`
	Pyramid     *bool           `yaml:"pyramid"`
	Dimensions  []seedDimension `yaml:"dimensions"`
}

type seedDimension struct {
	Field  string `yaml:"field"`
	Values []any  `yaml:"values"`
	Count  int    `yaml:"count"`
}

// SeedDefaults upserts the catalog sources. It reads overridePath when set,
// otherwise the built-in list. It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB, overridePath string) error {
	data := defaultSources
	if overridePath != "" {
		b, err := os.ReadFile(overridePath)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		data = b
	}
	sources, err := ParseSources(data)
	if err != nil {
		return err
	}
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		repo := repository.NewSourceRepo(tx)
		for _, s := range sources {
			if err := repo.Upsert(ctx, s); err != nil {
				return fmt.Errorf("seed %q: %w", s.Name, err)
			}
		}
		return nil
	})
}

// ParseSources decodes and validates a sources document.
func ParseSources(data []byte) ([]repository.Source, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	seen := make(map[string]bool, len(f.Sources))
	out := make([]repository.Source, 0, len(f.Sources))
	for _, s := range f.Sources {
		switch {
		case s.Name == "":
			return nil, fmt.Errorf("source with url %q has no name", s.URL)
		case seen[s.Name]:
			return nil, fmt.Errorf("source %q declared twice", s.Name)
		case !loader.IsSupported(s.Type):
			return nil, fmt.Errorf("source %q: %w", s.Name, &loader.UnsupportedSourceTypeError{Type: s.Type})
		}
		seen[s.Name] = true

		src := repository.Source{
			Name:        s.Name,
			Type:        s.Type,
			URL:         s.URL,
			Description: s.Description,
			IsRGB:       s.RGB,
			IsPyramid:   s.Pyramid == nil || *s.Pyramid,
		}
		for _, d := range s.Dimensions {
			dim, err := d.dimension()
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", s.Name, err)
			}
			src.Dimensions = append(src.Dimensions, dim)
		}
		out = append(out, src)
	}
	return out, nil
}

func (d seedDimension) dimension() (dims.Dimension, error) {
	if d.Count > 0 {
		return dims.Range(d.Field, d.Count), nil
	}
	dim := dims.Dimension{Field: d.Field, Values: make([]dims.Value, 0, len(d.Values))}
	for _, raw := range d.Values {
		v, err := dims.ValueOf(raw)
		if err != nil {
			return dims.Dimension{}, fmt.Errorf("dimension %s: %w", d.Field, err)
		}
		dim.Values = append(dim.Values, v)
	}
	return dim, nil
}
