// Package catalog serves the course list, falling back to a bundled copy when
// the backend cannot provide one.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

//go:embed courses.yaml
var bundledCourses []byte

// Parse decodes a YAML course list.
func Parse(data []byte) ([]domain.Course, error) {
	var courses []domain.Course
	if err := yaml.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("decode course catalog: %w", err)
	}
	return courses, nil
}

func Bundled() ([]domain.Course, error) {
	return Parse(bundledCourses)
}

// Catalog prefers the primary catalog and answers with the bundled courses when
// it fails or returns nothing.
type Catalog struct {
	primary  ports.CourseCatalog
	fallback []domain.Course
}

// New wraps primary; a nil primary serves only the bundled courses.
func New(primary ports.CourseCatalog) (*Catalog, error) {
	fallback, err := Bundled()
	if err != nil {
		return nil, err
	}
	return NewWithFallback(primary, fallback), nil
}

func NewWithFallback(primary ports.CourseCatalog, fallback []domain.Course) *Catalog {
	return &Catalog{primary: primary, fallback: fallback}
}

func (c *Catalog) ListCourses(ctx context.Context) ([]domain.Course, error) {
	if c.primary == nil {
		return c.bundled()
	}
	courses, err := c.primary.ListCourses(ctx)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("course_catalog_fallback", "reason", "error", "error", err)
		return c.bundled()
	case len(courses) == 0:
		slog.Warn("course_catalog_fallback", "reason", "empty")
		return c.bundled()
	}
	return courses, nil
}

func (c *Catalog) bundled() ([]domain.Course, error) {
	if len(c.fallback) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "catalog.list_courses", fmt.Errorf("no courses available"))
	}
	return slices.Clone(c.fallback), nil
}
