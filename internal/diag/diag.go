// Package diag collects the row- and line-level problems a run tolerated.
package diag

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Kind classifies a recoverable problem
type Kind string

const (
	// DataType marks a source row excluded because a field failed coercion
	DataType Kind = "data_type"
	// InvalidLine marks an order line excluded from its order's revenue
	InvalidLine Kind = "invalid_line"
	// OrphanLine marks an order line whose order or product does not exist
	OrphanLine Kind = "orphan_line"
	// DuplicateKey marks a row whose identifier an earlier row already used
	DuplicateKey Kind = "duplicate_key"
)

// MaxSamples bounds the offending keys kept per entry
const MaxSamples = 5

// Entry is the tally for one kind of problem on one entity
type Entry struct {
	Kind    Kind
	Entity  string
	Count   int
	Samples []string
}

type entryKey struct {
	kind   Kind
	entity string
}

// Diagnostics is safe for concurrent use by shard workers
type Diagnostics struct {
	RunID uuid.UUID

	mu      sync.Mutex
	entries map[entryKey]*Entry
}

// New starts diagnostics for a fresh run
func New() *Diagnostics {
	return &Diagnostics{
		RunID:   uuid.New(),
		entries: make(map[entryKey]*Entry),
	}
}

// Record counts one excluded row or line
func (d *Diagnostics) Record(kind Kind, entity, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := entryKey{kind: kind, entity: entity}
	e, ok := d.entries[k]
	if !ok {
		e = &Entry{Kind: kind, Entity: entity}
		d.entries[k] = e
	}
	e.Count++

	// keep the lowest keys so samples do not depend on shard scheduling
	i := sort.SearchStrings(e.Samples, key)
	if i >= MaxSamples {
		return
	}
	e.Samples = append(e.Samples, "")
	copy(e.Samples[i+1:], e.Samples[i:])
	e.Samples[i] = key
	if len(e.Samples) > MaxSamples {
		e.Samples = e.Samples[:MaxSamples]
	}
}

// Count returns the total recorded for a kind across entities
func (d *Diagnostics) Count(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := 0
	for k, e := range d.entries {
		if k.kind == kind {
			total += e.Count
		}
	}
	return total
}

// Entries returns a snapshot ordered by kind then entity
func (d *Diagnostics) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		cp := *e
		cp.Samples = append([]string(nil), e.Samples...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}
