// Package medication manages the repeating medication sub-form of the
// emergency protocol.
package medication

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/responda/responda/internal/domain/formsnapshot"
)

// Columns are the per-row fields in display order.
var Columns = []string{"name", "dose", "unit", "route", "time", "note"}

// Table is an ordered set of medication rows. It is safe for concurrent use.
type Table struct {
	mu   sync.RWMutex
	rows []*Row
}

// NewTable builds a table from existing rows, assigning ids where missing.
func NewTable(rows ...Row) *Table {
	t := &Table{}
	for i := range rows {
		r := rows[i]
		t.AddRow(&r)
	}
	return t
}

// AddRow appends a row, optionally prefilled, and returns it.
func (t *Table) AddRow(initial *Row) *Row {
	r := &Row{}
	if initial != nil {
		*r = *initial
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	t.mu.Lock()
	t.rows = append(t.rows, r)
	t.mu.Unlock()
	return r
}

// RemoveRow deletes the row shown at the 1-based display index.
func (t *Table) RemoveRow(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 1 || index > len(t.rows) {
		return fmt.Errorf("%w: index %d", ErrRowNotFound, index)
	}
	t.rows = append(t.rows[:index-1], t.rows[index:]...)
	return nil
}

// RemoveByID deletes the row with the given id.
func (t *Table) RemoveByID(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.rows {
		if r.ID == id {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRowNotFound, id)
}

// Update applies fn to the row with the given id. The id itself cannot change.
func (t *Table) Update(id uuid.UUID, fn func(r *Row)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.rows {
		if r.ID == id {
			fn(r)
			r.ID = id
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRowNotFound, id)
}

// Len returns the number of rows, including empty ones.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Rows returns a copy of the rows with contiguous display indices 1..N.
func (t *Table) Rows() []IndexedRow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]IndexedRow, len(t.rows))
	for i, r := range t.rows {
		out[i] = IndexedRow{Index: i + 1, Row: *r}
	}
	return out
}

// SerializeRows returns the rows that carry a medication name, in order.
func (t *Table) SerializeRows() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		if r.Empty() {
			continue
		}
		out = append(out, *r)
	}
	return out
}

// FieldName is the form field name of a row column. It is keyed by the row's
// stable id so removing another row never renames it.
func FieldName(id uuid.UUID, column string) string {
	return "med_" + id.String() + "_" + column
}

// Fields renders every row into form fields.
func (t *Table) Fields() formsnapshot.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := make(formsnapshot.Snapshot, len(t.rows)*len(Columns))
	for _, r := range t.rows {
		for _, col := range Columns {
			s[FieldName(r.ID, col)] = r.get(col)
		}
	}
	return s
}

// ApplyFields copies edited form fields back into the rows they belong to.
// Fields for unknown row ids are ignored.
func (t *Table) ApplyFields(s formsnapshot.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.rows {
		for _, col := range Columns {
			if v, ok := s[FieldName(r.ID, col)]; ok {
				r.set(col, fmt.Sprintf("%v", v))
			}
		}
	}
}

var legacyField = regexp.MustCompile(`^med_(name|dose|unit|route|time|note)_(\d+)$`)

// FromSnapshot imports rows stored under positional field names
// (med_name_1, med_dose_1, ...) ordered by their number. Rows without a
// name are dropped.
func FromSnapshot(s formsnapshot.Snapshot) *Table {
	byPos := make(map[int]*Row)
	for key, v := range s {
		m := legacyField.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		pos, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		r, ok := byPos[pos]
		if !ok {
			r = &Row{}
			byPos[pos] = r
		}
		r.set(m[1], fmt.Sprintf("%v", v))
	}

	positions := make([]int, 0, len(byPos))
	for p := range byPos {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	t := &Table{}
	for _, p := range positions {
		if byPos[p].Empty() {
			continue
		}
		t.AddRow(byPos[p])
	}
	return t
}

// LegacyKeys lists the positional keys present in s so callers can strip
// them after import.
func LegacyKeys(s formsnapshot.Snapshot) []string {
	var keys []string
	for k := range s {
		if legacyField.MatchString(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (r *Row) get(col string) string {
	switch col {
	case "name":
		return r.Name
	case "dose":
		return r.Dose
	case "unit":
		return r.Unit
	case "route":
		return string(r.Route)
	case "time":
		return r.Time
	case "note":
		return r.Note
	}
	return ""
}

func (r *Row) set(col, v string) {
	switch col {
	case "name":
		r.Name = v
	case "dose":
		r.Dose = v
	case "unit":
		r.Unit = v
	case "route":
		if route, err := ParseRoute(v); err == nil {
			r.Route = route
		} else {
			r.Route = Route(strings.TrimSpace(v))
		}
	case "time":
		r.Time = v
	case "note":
		r.Note = v
	}
}
