package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SchemaResolutionError reports that an entity's source columns match none of
// the known variants. It is fatal for the whole run.
type SchemaResolutionError struct {
	Entity   Entity
	Field    string
	Tried    []string
	Observed []string
	Reason   string
}

func (e *SchemaResolutionError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no known variant present"
	}
	return fmt.Sprintf("cannot resolve %s.%s: %s (tried %s; observed %s)",
		e.Entity, e.Field, reason,
		strings.Join(e.Tried, ", "), strings.Join(e.Observed, ", "))
}

// Mapping is the resolved canonical → physical column mapping of one entity.
// Optional fields that were absent from the source have no entry.
type Mapping struct {
	Entity Entity
	Table  string
	Fields map[string]string
}

// Physical returns the physical column for a canonical field
func (m Mapping) Physical(canonical string) (string, bool) {
	col, ok := m.Fields[canonical]
	return col, ok
}

// Columns returns the mapped physical columns, sorted
func (m Mapping) Columns() []string {
	cols := make([]string, 0, len(m.Fields))
	for _, col := range m.Fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Resolve picks, for every canonical field of the entity, the first candidate
// present in observed. Exact spellings win; otherwise a single
// case-insensitive match is accepted, since some engines fold unquoted
// identifiers to lower case.
func (v *Variants) Resolve(entity Entity, observed []string) (Mapping, error) {
	fields, ok := v.fields[entity]
	if !ok {
		return Mapping{}, &SchemaResolutionError{
			Entity:   entity,
			Observed: sortedCopy(observed),
			Reason:   "entity has no variant table",
		}
	}

	exact := make(map[string]bool, len(observed))
	folded := make(map[string][]string, len(observed))
	for _, name := range observed {
		exact[name] = true
		key := strings.ToLower(name)
		folded[key] = append(folded[key], name)
	}

	m := Mapping{Entity: entity, Fields: make(map[string]string, len(fields))}
	for _, f := range fields {
		col, err := pick(f, exact, folded)
		if err != nil {
			err.Entity = entity
			err.Observed = sortedCopy(observed)
			return Mapping{}, err
		}
		if col == "" {
			if f.Optional {
				continue
			}
			return Mapping{}, &SchemaResolutionError{
				Entity:   entity,
				Field:    f.Canonical,
				Tried:    f.Candidates,
				Observed: sortedCopy(observed),
			}
		}
		m.Fields[f.Canonical] = col
	}
	return m, nil
}

func pick(f Field, exact map[string]bool, folded map[string][]string) (string, *SchemaResolutionError) {
	for _, c := range f.Candidates {
		if exact[c] {
			return c, nil
		}
	}
	for _, c := range f.Candidates {
		matches := folded[strings.ToLower(c)]
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return "", &SchemaResolutionError{
				Field:  f.Canonical,
				Tried:  f.Candidates,
				Reason: fmt.Sprintf("ambiguous case-insensitive match %s", strings.Join(matches, ", ")),
			}
		}
	}
	return "", nil
}

// FieldLister reports the physical columns of a table
type FieldLister interface {
	Fields(ctx context.Context, table string) ([]string, error)
}

// ResolveAll introspects and resolves every entity. The first failure aborts;
// the mappings resolved before it are still returned.
func (v *Variants) ResolveAll(ctx context.Context, src FieldLister, tables TableNames) (map[Entity]Mapping, error) {
	out := make(map[Entity]Mapping, len(Entities))
	for _, entity := range Entities {
		table, ok := tables[entity]
		if !ok || table == "" {
			return nil, fmt.Errorf("no table configured for entity %s", entity)
		}

		observed, err := src.Fields(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect %s (%s): %w", entity, table, err)
		}

		m, err := v.Resolve(entity, observed)
		if err != nil {
			return out, err
		}
		m.Table = table
		out[entity] = m
	}
	return out, nil
}
