package pdfreport

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/medication"
	"github.com/responda/responda/internal/platform/datauri"
)

func testRenderer() *Renderer {
	return &Renderer{
		Compress: false,
		Now:      func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) },
		Location: time.UTC,
	}
}

func pngURI(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 16))
	for x := 0; x < 40; x++ {
		img.Set(x, 8, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return datauri.Encode("image/png", buf.Bytes())
}

func basePayload() formsnapshot.Snapshot {
	return formsnapshot.Snapshot{
		"einsatz_nr":       "2026-0042",
		"zeit_einsatz":     "2026-05-04T09:15",
		"name":             "Muster",
		"vorname":          "Max",
		"gebdatum":         "1980-02-01",
		"notfallgeschehen": "Sturz von Leiter.",
		"gcs_e":            "4",
		"gcs_v":            "4",
		"gcs_m":            "6",
		"af":               "24",
		"rr_sys":           "120",
		"ausfueller_name":  "Erika Helfer",
	}
}

func TestPatient_ContainsFields(t *testing.T) {
	doc, err := testRenderer().Patient(PatientReport{
		Organization: "FF Musterstadt",
		Payload:      basePayload(),
		Medications: []medication.Row{
			{Name: "Paracetamol", Dose: "500", Unit: "mg", Route: medication.RouteIV, Time: "09:20", Note: "langsam"},
			{Name: ""},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)

	out := string(doc.Data)
	assert.Contains(t, out, "FF Musterstadt")
	assert.Contains(t, out, "NOTFALLPROTOKOLL")
	assert.Contains(t, out, "Max Muster")
	// every cell of the medication row is its own text object
	for _, cell := range []string{"Paracetamol", "500", "mg", "i.v.", "09:20", "langsam"} {
		assert.Contains(t, out, "("+cell+") Tj", cell)
	}
	assert.Contains(t, out, "04.05.2026, 09:15:00")
	assert.Contains(t, out, "01.02.1980")
	assert.Contains(t, out, "Einsatz-Nr: 2026-0042 | FF Musterstadt | Seite 1 von 1")
	assert.NotContains(t, out, "Keine Medikamentengabe")
}

func TestPatient_LongNarrativeSpansPages(t *testing.T) {
	payload := basePayload()
	payload["notfallgeschehen"] = strings.Repeat("Patient klagt über starke Schmerzen im Brustbereich. ", 400)

	doc, err := testRenderer().Patient(PatientReport{Payload: payload})
	require.NoError(t, err)
	require.GreaterOrEqual(t, doc.Pages, 2)

	out := string(doc.Data)
	for n := 2; n <= doc.Pages; n++ {
		assert.Contains(t, out, fmt.Sprintf("NOTFALLPROTOKOLL - Seite %d", n))
	}
	assert.Contains(t, out, fmt.Sprintf("Seite 1 von %d", doc.Pages))
	assert.Contains(t, out, DefaultOrganization)
}

func TestPatient_MedicationTablePaginates(t *testing.T) {
	var rows []medication.Row
	for i := 1; i <= 80; i++ {
		rows = append(rows, medication.Row{Name: fmt.Sprintf("Medikament-%02d", i), Dose: "1", Unit: "mg"})
	}
	doc, err := testRenderer().Patient(PatientReport{Payload: basePayload(), Medications: rows})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, doc.Pages, 2)

	out := string(doc.Data)
	assert.Contains(t, out, "Medikament-01")
	assert.Contains(t, out, "Medikament-80")
}

func TestPatient_NoMedications(t *testing.T) {
	doc, err := testRenderer().Patient(PatientReport{Payload: basePayload()})
	require.NoError(t, err)
	assert.Contains(t, string(doc.Data), "Keine Medikamentengabe dokumentiert")
}

func TestPatient_BadImageFallsBackToPlaceholder(t *testing.T) {
	doc, err := testRenderer().Patient(PatientReport{
		Payload:   basePayload(),
		Signature: "data:image/png;base64,bm90IGFuIGltYWdl",
		Photos:    []string{"garbage"},
		Approver:  Approval{Name: "Admin", At: time.Date(2026, 5, 5, 8, 0, 0, 0, time.UTC), Signature: pngURI(t)},
	})
	require.NoError(t, err)

	out := string(doc.Data)
	assert.Contains(t, out, `\(Unterschrift vorhanden\)`)
	assert.Contains(t, out, "Foto nicht darstellbar")
	assert.Contains(t, out, "/Subtype /Image")
	assert.Contains(t, out, "05.05.2026, 08:00:00")
}

func TestPatient_ValidSignatureEmbedded(t *testing.T) {
	doc, err := testRenderer().Patient(PatientReport{Payload: basePayload(), Signature: pngURI(t)})
	require.NoError(t, err)
	out := string(doc.Data)
	assert.Contains(t, out, "/Subtype /Image")
	assert.NotContains(t, out, "Unterschrift vorhanden")
}

func TestIncident_Renders(t *testing.T) {
	doc, err := testRenderer().Incident(IncidentReport{
		Organization:          "FF Musterstadt",
		AlarmAt:               time.Date(2026, 5, 1, 14, 2, 0, 0, time.UTC),
		Stichwort:             "B3 Wohnungsbrand",
		Adresse:               "Hauptstraße 1, 12345 Musterstadt",
		PatientenDatenErhoben: true,
		PatientName:           "Erika Muster",
		Sachverhalt:           strings.Repeat("Lage unklar. ", 20),
		Protokollpflichtig:    true,
		NacherfasstVonName:    "Hans Nach",
	})
	require.NoError(t, err)

	out := string(doc.Data)
	assert.Contains(t, out, "EINSATZNACHERFASSUNG")
	assert.Contains(t, out, "B3 Wohnungsbrand")
	assert.Contains(t, out, "Erika Muster")
	assert.Contains(t, out, "Hans Nach")
	assert.Contains(t, out, "01.05.2026, 14:02:00")
	assert.Contains(t, out, "Keine Unterschrift vorhanden")
	assert.Contains(t, out, fmt.Sprintf("FF Musterstadt - Einsatznacherfassung | Seite 1 von %d", doc.Pages))
}

func TestIncident_HidesPatientWhenNotCollected(t *testing.T) {
	doc, err := testRenderer().Incident(IncidentReport{PatientName: "Geheim"})
	require.NoError(t, err)
	assert.NotContains(t, string(doc.Data), "Geheim")
}

func TestRenderPatientReport_Compressed(t *testing.T) {
	data, err := RenderPatientReport(PatientReport{Payload: basePayload()})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	n, err := Verify(data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVerify_RejectsGarbage(t *testing.T) {
	_, err := Verify([]byte("not a pdf"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Notfallprotokoll_E-17_20260109.pdf", FileName("E-17", at))
	assert.Equal(t, "Notfallprotokoll_ohne_nr_20260109.pdf", FileName("  ", at))
	assert.Equal(t, "Notfallprotokoll_E-17__x_y__20260109.pdf", FileName(`E-17"\x;y/`, at))
	assert.Equal(t, "Notfallprotokoll_Wache_2_20260109.pdf", FileName("Wache 2", at))
	assert.Equal(t, "Nacherfassung_B3_Feuer_2026-01-09.pdf", IncidentFileName("B3 Feuer", at))
	assert.Equal(t, "Nacherfassung_Nacherfassung_2026-01-09.pdf", IncidentFileName("", at))
}

func TestWrap_BreaksLongWords(t *testing.T) {
	p := newPage("Org", "T", "now", "f", false)
	p.pdf.SetFont("Helvetica", "", 10)
	lines := p.wrap(strings.Repeat("x", 400), 50)
	require.Greater(t, len(lines), 1)
	for _, l := range lines {
		assert.LessOrEqual(t, p.pdf.GetStringWidth(l), 50.0)
	}
	assert.Equal(t, 400, len(strings.Join(lines, "")))
}
