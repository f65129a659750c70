package medication

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/responda/responda/internal/domain/formsnapshot"
)

func fiveRows() *Table {
	t := &Table{}
	for _, name := range []string{"Adrenalin", "Amiodaron", "Atropin", "Midazolam", "Fentanyl"} {
		t.AddRow(&Row{Name: name, Dose: "1", Unit: "mg", Route: RouteIV})
	}
	return t
}

func TestAddRow_AssignsStableID(t *testing.T) {
	tbl := &Table{}
	r := tbl.AddRow(nil)
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, 1, tbl.Len())
}

func TestRemoveRow_RenumbersContiguously(t *testing.T) {
	tbl := fiveRows()
	before := tbl.Rows()

	require.NoError(t, tbl.RemoveRow(2))

	rows := tbl.Rows()
	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, i+1, r.Index)
	}
	assert.Equal(t, []string{"Adrenalin", "Atropin", "Midazolam", "Fentanyl"},
		[]string{rows[0].Name, rows[1].Name, rows[2].Name, rows[3].Name})

	// ids of the remaining rows do not shift
	assert.Equal(t, before[2].ID, rows[1].ID)
	assert.Equal(t, before[4].ID, rows[3].ID)
}

func TestRemoveRow_OutOfRange(t *testing.T) {
	tbl := fiveRows()
	assert.ErrorIs(t, tbl.RemoveRow(0), ErrRowNotFound)
	assert.ErrorIs(t, tbl.RemoveRow(6), ErrRowNotFound)
	assert.Equal(t, 5, tbl.Len())
}

func TestFields_StableAcrossRemoval(t *testing.T) {
	tbl := fiveRows()
	third := tbl.Rows()[2]
	key := FieldName(third.ID, "dose")

	require.NoError(t, tbl.RemoveRow(1))

	fields := tbl.Fields()
	assert.Equal(t, "1", fields[key])

	// an in-flight edit keyed by the old field name still lands on the same row
	tbl.ApplyFields(formsnapshot.Snapshot{key: "2"})
	got := tbl.Rows()[1]
	assert.Equal(t, third.ID, got.ID)
	assert.Equal(t, "2", got.Dose)
}

func TestUpdate_KeepsID(t *testing.T) {
	tbl := fiveRows()
	id := tbl.Rows()[0].ID
	require.NoError(t, tbl.Update(id, func(r *Row) {
		r.Note = "Reanimation"
		r.ID = uuid.New()
	}))
	assert.Equal(t, id, tbl.Rows()[0].ID)
	assert.Equal(t, "Reanimation", tbl.Rows()[0].Note)
}

func TestSerializeRows_DropsEmptyNames(t *testing.T) {
	tbl := &Table{}
	tbl.AddRow(&Row{Name: "Adrenalin"})
	tbl.AddRow(&Row{Dose: "5"})
	rows := tbl.SerializeRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Adrenalin", rows[0].Name)
}

func TestFromSnapshot_LegacyPositionalFields(t *testing.T) {
	s := formsnapshot.Snapshot{
		"med_name_2":  "Atropin",
		"med_route_2": "IV",
		"med_name_1":  "Adrenalin",
		"med_dose_1":  "1",
		"med_unit_1":  "mg",
		"med_route_1": "i.v.",
		"med_name_3":  "",
		"name":        "Mustermann",
	}
	tbl := FromSnapshot(s)
	rows := tbl.SerializeRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Adrenalin", rows[0].Name)
	assert.Equal(t, RouteIV, rows[0].Route)
	assert.Equal(t, "Atropin", rows[1].Name)
	assert.Equal(t, RouteIV, rows[1].Route)
	assert.Len(t, LegacyKeys(s), 7)
}

func TestParseRoute(t *testing.T) {
	cases := map[string]Route{
		"i.v.":   RouteIV,
		"IV":     RouteIV,
		"im":     RouteIM,
		"s.c":    RouteSC,
		"P.O.":   RoutePO,
		"inhal.": RouteInhal,
		"":       "",
	}
	for in, want := range cases {
		got, err := ParseRoute(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRoute("rektal")
	assert.ErrorIs(t, err, ErrInvalidRoute)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]Row{{Name: "Adrenalin", Route: RouteIV}, {Name: "O2"}}))
	assert.ErrorIs(t, Validate([]Row{{Name: "X", Route: "intraossär"}}), ErrInvalidRoute)
}
