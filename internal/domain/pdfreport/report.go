// Package pdfreport lays out patient protocols and incident records as A4
// PDF documents.
//
// Layout is cursor based: every section and table row asks for vertical
// space first and continues on a new page (with the running header redrawn)
// when the current one is exhausted. Every rendered document is validated
// with pdfcpu before it is returned.
package pdfreport

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/medication"
	"github.com/responda/responda/internal/platform/metrics"
)

// DefaultOrganization is printed when a report carries no organization name.
const DefaultOrganization = "Feuerwehr"

var ErrInvalidDocument = errors.New("rendered document failed validation")

func init() {
	api.DisableConfigDir()
}

// Approval is the reviewer block of a patient protocol.
type Approval struct {
	Name      string
	At        time.Time
	Signature string
}

// PatientReport is the input of the patient protocol ("Notfallprotokoll").
type PatientReport struct {
	Organization string
	Payload      formsnapshot.Snapshot
	Medications  []medication.Row
	Photos       []string
	Signature    string
	Approver     Approval
}

// IncidentReport is the input of the retrospective incident record
// ("Einsatznacherfassung").
type IncidentReport struct {
	Organization string

	AlarmAt          time.Time
	EndAt            time.Time
	Stichwort        string
	Kategorie        string
	EinsatznummerILS string
	Meldebild        string
	Adresse          string
	DisponierteEMFW  string
	DisponierteEMRD  string

	PatientenDatenErhoben         bool
	PatientName                   string
	PatientAlterGeburtsdatum      string
	PatientNummerILS              string
	Sachverhalt                   string
	Protokollpflichtig            bool
	ProtokollpflichtigBegruendung string

	VerantwortlicherUnterwiesen   bool
	VerantwortlicherName          string
	VerantwortlicherQualifikation string
	NacherfasstVonName            string
	NacherfasstVonQualifikation   string
	NacherfasstAt                 time.Time
	NacherfasstUnterschrift       string
}

// Document is a rendered and validated PDF.
type Document struct {
	Data  []byte
	Pages int
}

// Renderer renders reports. The zero value is not usable; use NewRenderer.
type Renderer struct {
	// Compress enables stream compression. Disabled in tests so the text
	// content can be inspected.
	Compress bool
	Now      func() time.Time
	Location *time.Location
}

// NewRenderer returns a renderer with compression enabled, printing times in
// Europe/Berlin when that zone is available.
func NewRenderer() *Renderer {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}
	return &Renderer{Compress: true, Now: time.Now, Location: loc}
}

var defaultRenderer = NewRenderer()

// RenderPatientReport renders a patient protocol with the default renderer.
func RenderPatientReport(r PatientReport) ([]byte, error) {
	doc, err := defaultRenderer.Patient(r)
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// RenderIncidentReport renders an incident record with the default renderer.
func RenderIncidentReport(r IncidentReport) ([]byte, error) {
	doc, err := defaultRenderer.Incident(r)
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// Patient renders a patient protocol.
func (rd *Renderer) Patient(r PatientReport) (*Document, error) {
	doc, err := rd.finish(rd.layoutPatient(r))
	metrics.PDFRenders.WithLabelValues("patient", metrics.Result(err)).Inc()
	return doc, err
}

// Incident renders an incident record.
func (rd *Renderer) Incident(r IncidentReport) (*Document, error) {
	doc, err := rd.finish(rd.layoutIncident(r))
	metrics.PDFRenders.WithLabelValues("incident", metrics.Result(err)).Inc()
	return doc, err
}

func (rd *Renderer) finish(p *page) (*Document, error) {
	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	pages, err := Verify(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &Document{Data: buf.Bytes(), Pages: pages}, nil
}

// Verify validates a PDF and returns its page count.
func Verify(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: page count: %v", ErrInvalidDocument, err)
	}
	return n, nil
}

func orgOrDefault(org string) string {
	if org == "" {
		return DefaultOrganization
	}
	return org
}
