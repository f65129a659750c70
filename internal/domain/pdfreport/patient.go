package pdfreport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/responda/responda/internal/domain/medication"
	"github.com/responda/responda/internal/domain/scores"
)

const (
	medIndexWidth  = 8.0
	medRowLine     = 4.0
	medHeaderH     = 5.0
	photoBoxWidth  = 85.0
	photoBoxHeight = 60.0
	sigBoxWidth    = 50.0
	sigBoxHeight   = 20.0
)

var medColumns = []string{"#", "Medikament", "Dosis", "Einh.", "Route", "Uhrzeit", "Bemerkung"}

func (rd *Renderer) layoutPatient(r PatientReport) *page {
	org := orgOrDefault(r.Organization)
	pl := r.Payload
	nr := pl.String("einsatz_nr")
	if nr == "" {
		nr = "?"
	}
	p := newPage(org, "NOTFALLPROTOKOLL", rd.now().In(rd.loc()).Format(deDateTime),
		fmt.Sprintf("Einsatz-Nr: %s | %s", nr, org), rd.Compress)

	p.section("1. EINSATZDATEN", 12)
	p.fields(3,
		field{"Einsatz-Nr:", pl.String("einsatz_nr")},
		field{"Datum/Uhrzeit:", rd.dateTime(pl.String("zeit_einsatz"))},
		field{"Pat./Auftrags-Nr:", pl.String("auftrags_nr")},
		field{"Fahrzeug:", pl.String("fahrzeug")},
		field{"Rufname:", pl.String("rufname")},
		field{"Einsatz-Art:", pl.String("einsatz_art")},
	)
	p.y += 2

	phone := pl.String("telefon")
	if phone == "" {
		phone = pl.String("mobil")
	}
	p.section("2. PATIENT", 12)
	p.fields(3,
		field{"Name:", strings.TrimSpace(pl.String("vorname") + " " + pl.String("name"))},
		field{"Straße:", pl.String("strasse")},
		field{"Kasse:", pl.String("kasse")},
		field{"Geburtsdatum:", date(pl.String("gebdatum"))},
		field{"PLZ, Ort:", pl.String("plz_ort")},
		field{"Vers.-Nr.:", pl.String("versnr")},
		field{"Alter:", pl.String("alter")},
		field{"Telefon:", phone},
		field{"Hausarzt:", pl.String("hausarzt")},
	)
	p.y += 2

	p.section("3. ANAMNESE / NOTFALLGESCHEHEN", 10)
	p.paragraph(pl.String("notfallgeschehen"), 9.5)

	derived := scores.Compute(pl.String)
	p.section("4. VITALPARAMETER", 24)
	p.fields(4,
		field{"RR:", fmt.Sprintf("%s / %s mmHg", valueOrDash(pl.String("rr_sys")), valueOrDash(pl.String("rr_dia")))},
		field{"AF:", withUnit(pl.String("af"), "/min")},
		field{"Temp:", withUnit(pl.String("temp"), "°C")},
		field{"etCO2:", withUnit(pl.String("etco2"), "mmHg")},
		field{"HF:", withUnit(pl.String("hf"), "/min")},
		field{"SpO2:", withUnit(pl.String("spo2"), "%")},
		field{"BZ:", withUnit(pl.String("bz_mg"), "mg/dl")},
		field{"Schmerz:", withUnit(pl.String("schmerz"), "/ 10")},
		field{"GCS:", derived.GCS.Display()},
		field{"qSOFA:", derived.QSOFA.Display()},
	)
	p.y += 2

	p.section("5. MEDIKAMENTE", 10)
	p.medicationTable(r.Medications)
	p.y += 2

	if len(r.Photos) > 0 {
		p.section("6. FOTOS", photoBoxHeight)
		p.photos(r.Photos)
	}

	p.section("7. UNTERSCHRIFTEN", 34)
	p.signatures(
		signer{"Ausfüller:", pl.String("ausfueller_name"), rd.dateTime(pl.String("ausfueller_zeit")), r.Signature},
		signer{"MPG-Beauftragter:", r.Approver.Name, rd.timeValue(r.Approver.At), r.Approver.Signature},
	)
	return p
}

// medicationTable draws one row per named medication. The table continues on
// the next page with its column header repeated.
func (p *page) medicationTable(rows []medication.Row) {
	var named []medication.Row
	for _, r := range rows {
		if strings.TrimSpace(r.Name) != "" {
			named = append(named, r)
		}
	}
	if len(named) == 0 {
		p.note("Keine Medikamentengabe dokumentiert", 9)
		return
	}

	left := margin + 2
	tableWidth := contentWidth - 4
	colWidth := (tableWidth - medIndexWidth) / float64(len(medColumns)-1)
	colX := func(i int) float64 {
		if i == 0 {
			return left
		}
		return left + medIndexWidth + float64(i-1)*colWidth
	}
	colW := func(i int) float64 {
		if i == 0 {
			return medIndexWidth
		}
		return colWidth
	}

	header := func() {
		p.pdf.SetFillColor(sectionFill[0], sectionFill[1], sectionFill[2])
		p.pdf.Rect(left, p.y, tableWidth, medHeaderH, "F")
		p.pdf.SetFont("Helvetica", "B", 8)
		for i, col := range medColumns {
			p.pdf.Text(colX(i)+1, p.y+3.5, p.tr(col))
		}
		p.y += medHeaderH + 1
	}

	p.ensureSpace(medHeaderH + 1 + medRowLine)
	header()
	for i, r := range named {
		cells := []string{strconv.Itoa(i + 1), r.Name, r.Dose, r.Unit, string(r.Route), r.Time, r.Note}
		p.pdf.SetFont("Helvetica", "", 8)
		wrapped := make([][]string, len(cells))
		lines := 1
		for c, v := range cells {
			wrapped[c] = p.wrap(valueOrDash(v), colW(c)-2)
			if len(wrapped[c]) > lines {
				lines = len(wrapped[c])
			}
		}
		h := float64(lines)*medRowLine + 1
		if p.ensureSpace(h) {
			header()
			p.pdf.SetFont("Helvetica", "", 8)
		}
		for c, ls := range wrapped {
			for j, line := range ls {
				p.pdf.Text(colX(c)+1, p.y+3+float64(j)*medRowLine, line)
			}
		}
		p.y += h
	}
}

// photos lays out attachments two per row.
func (p *page) photos(uris []string) {
	for i := 0; i < len(uris); i += 2 {
		p.ensureSpace(photoBoxHeight + 2)
		for j := 0; j < 2 && i+j < len(uris); j++ {
			x := margin + 2 + float64(j)*(photoBoxWidth+fieldGap)
			p.embed(uris[i+j], x, p.y, photoBoxWidth, photoBoxHeight, PhotoPlaceholder)
		}
		p.y += photoBoxHeight + 2
	}
}

type signer struct {
	label     string
	name      string
	at        string
	signature string
}

// signatures draws the signer blocks side by side.
func (p *page) signatures(signers ...signer) {
	colWidth := (contentWidth - fieldGap) / float64(len(signers))
	h := 12 + sigBoxHeight + 2
	p.ensureSpace(h)
	for i, s := range signers {
		x := margin + 2 + float64(i)*(colWidth+fieldGap)
		p.pdf.SetFont("Helvetica", "B", 9)
		p.pdf.Text(x, p.y+3, p.tr(s.label))
		p.pdf.SetFont("Helvetica", "", 10)
		p.pdf.Text(x, p.y+7.5, p.tr(valueOrDash(s.name)))
		if s.at != "-" {
			p.pdf.SetFont("Helvetica", "", 9)
			p.pdf.Text(x, p.y+11.5, p.tr(s.at))
		}
		if s.signature != "" {
			p.embed(s.signature, x, p.y+12, sigBoxWidth, sigBoxHeight, SignaturePlaceholder)
		}
	}
	p.y += h
}
