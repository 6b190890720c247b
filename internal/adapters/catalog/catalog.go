// Package catalog provides the items the rotation scheduler rotates over.
package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/okian/drillcore/internal/domain/rotation"
)

// Static serves a fixed list.
type Static struct {
	items []rotation.Item
}

// NewStatic returns a provider over items, or the built-in list when items is empty.
func NewStatic(items []rotation.Item) *Static {
	if len(items) == 0 {
		items = rotation.DefaultCatalog()
	}
	return &Static{items: append([]rotation.Item(nil), items...)}
}

// Items implements rotation.Catalog.
func (s *Static) Items(_ context.Context) ([]rotation.Item, error) {
	return append([]rotation.Item(nil), s.items...), nil
}

type document struct {
	Items []rotation.Item `yaml:"items" validate:"dive"`
}

// File reads a YAML catalog on every call so edits apply at the next rotation.
type File struct {
	path     string
	validate *validator.Validate
}

// NewFile returns a provider reading path.
func NewFile(path string) *File {
	return &File{path: path, validate: validator.New()}
}

// Items implements rotation.Catalog.
func (f *File) Items(ctx context.Context) ([]rotation.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return Parse(raw, f.validate)
}

// Parse decodes and validates a YAML catalog document.
func Parse(raw []byte, v *validator.Validate) ([]rotation.Item, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	seen := make(map[string]struct{}, len(doc.Items))
	for _, it := range doc.Items {
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrInvalid, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return doc.Items, nil
}
