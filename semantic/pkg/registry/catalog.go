package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CatalogReader lists the physical columns of a table. An unknown table
// yields an empty slice and no error.
type CatalogReader interface {
	TableColumns(ctx context.Context, table string) ([]string, error)
}

// VerifyCatalog checks every declared model against the live database.
// Mismatches are reported together in one SchemaLoadError.
func (r *Registry) VerifyCatalog(ctx context.Context, catalog CatalogReader) error {
	var problems []error
	for _, m := range r.models {
		cols, err := catalog.TableColumns(ctx, m.Table)
		if err != nil {
			return &SchemaLoadError{Source: r.source, Err: fmt.Errorf("failed to read catalog for %s: %w", m.Table, err)}
		}
		if len(cols) == 0 {
			problems = append(problems, fmt.Errorf("table %s (model %s) does not exist", m.Table, m.Name))
			continue
		}
		present := make(map[string]bool, len(cols))
		for _, c := range cols {
			present[strings.ToLower(c)] = true
		}
		for _, c := range m.Columns {
			if !present[strings.ToLower(c.Physical)] {
				problems = append(problems, fmt.Errorf("column %s.%s (model %s) does not exist", m.Table, c.Physical, m.Name))
			}
		}
	}
	if len(problems) > 0 {
		return &SchemaLoadError{Source: r.source, Err: errors.Join(problems...)}
	}
	return nil
}
