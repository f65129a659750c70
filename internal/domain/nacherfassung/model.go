package nacherfassung

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/pdfreport"
)

type Status string

const (
	StatusOffen    Status = "offen"
	StatusArchived Status = "archiviert"
)

var (
	ErrNotFound          = errors.New("nacherfassung not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// CanTransition reports whether a record may move from one status to the
// other. Archived records are final.
func CanTransition(from, to Status) bool {
	return from == StatusOffen && to == StatusArchived
}

// Record maps to the nacherfassung table: an incident documented after the
// fact when no protocol was written on scene.
type Record struct {
	ID                            uuid.UUID  `db:"id" json:"id"`
	DatumAlarmzeit                *time.Time `db:"datum_alarmzeit" json:"datum_alarmzeit,omitempty"`
	DatumEinsatzende              *time.Time `db:"datum_einsatzende" json:"datum_einsatzende,omitempty"`
	Stichwort                     string     `db:"stichwort" json:"stichwort"`
	Kategorie                     string     `db:"kategorie" json:"kategorie"`
	EinsatznummerILS              string     `db:"einsatznummer_ils" json:"einsatznummer_ils"`
	Meldebild                     string     `db:"meldebild" json:"meldebild"`
	Adresse                       string     `db:"adresse" json:"adresse"`
	DisponierteEMFW               string     `db:"disponierte_em_fw" json:"disponierte_em_fw"`
	DisponierteEMRD               string     `db:"disponierte_em_rd" json:"disponierte_em_rd"`
	PatientenDatenErhoben         bool       `db:"patienten_daten_erhoben" json:"patienten_daten_erhoben"`
	PatientName                   string     `db:"patient_name" json:"patient_name"`
	PatientAlterGeburtsdatum      string     `db:"patient_alter_geburtsdatum" json:"patient_alter_geburtsdatum"`
	PatientNummerILS              string     `db:"patient_nummer_ils" json:"patient_nummer_ils"`
	Sachverhalt                   string     `db:"sachverhalt" json:"sachverhalt"`
	Protokollpflichtig            bool       `db:"protokollpflichtig" json:"protokollpflichtig"`
	ProtokollpflichtigBegruendung string     `db:"protokollpflichtig_begruendung" json:"protokollpflichtig_begruendung"`
	VerantwortlicherUnterwiesen   bool       `db:"verantwortlicher_unterwiesen" json:"verantwortlicher_unterwiesen"`
	VerantwortlicherName          string     `db:"verantwortlicher_name" json:"verantwortlicher_name"`
	VerantwortlicherQualifikation string     `db:"verantwortlicher_qualifikation" json:"verantwortlicher_qualifikation"`
	NacherfasstVonName            string     `db:"nacherfasst_von_name" json:"nacherfasst_von_name"`
	NacherfasstVonQualifikation   string     `db:"nacherfasst_von_qualifikation" json:"nacherfasst_von_qualifikation"`
	NacherfasstDatum              *time.Time `db:"nacherfasst_datum" json:"nacherfasst_datum,omitempty"`
	NacherfasstUnterschrift       string     `db:"nacherfasst_unterschrift" json:"nacherfasst_unterschrift,omitempty"`
	Status                        Status     `db:"status" json:"status"`
	AdminName                     *string    `db:"admin_name" json:"admin_name,omitempty"`
	AdminDatum                    *time.Time `db:"admin_datum" json:"admin_datum,omitempty"`
	AdminUnterschrift             *string    `db:"admin_unterschrift" json:"admin_unterschrift,omitempty"`
	OrganizationID                string     `db:"organization_id" json:"organization_id"`
	CreatedAt                     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                     time.Time  `db:"updated_at" json:"updated_at"`
}

// FromSnapshot builds a record from the retro form. Timestamps without a
// zone are read in loc.
func FromSnapshot(s formsnapshot.Snapshot, loc *time.Location) *Record {
	if loc == nil {
		loc = time.UTC
	}
	str := func(k string) string { return strings.TrimSpace(s.String(k)) }
	return &Record{
		DatumAlarmzeit:                s.Time("datum_alarmzeit", loc),
		DatumEinsatzende:              s.Time("datum_einsatzende", loc),
		Stichwort:                     str("stichwort"),
		Kategorie:                     str("kategorie"),
		EinsatznummerILS:              str("einsatznummer_ils"),
		Meldebild:                     str("meldebild"),
		Adresse:                       str("adresse"),
		DisponierteEMFW:               str("disponierte_em_fw"),
		DisponierteEMRD:               str("disponierte_em_rd"),
		PatientenDatenErhoben:         s.Bool("patienten_daten_erhoben"),
		PatientName:                   str("patient_name"),
		PatientAlterGeburtsdatum:      str("patient_alter_geburtsdatum"),
		PatientNummerILS:              str("patient_nummer_ils"),
		Sachverhalt:                   str("sachverhalt"),
		Protokollpflichtig:            s.Bool("protokollpflichtig"),
		ProtokollpflichtigBegruendung: str("protokollpflichtig_begruendung"),
		VerantwortlicherUnterwiesen:   s.Bool("verantwortlicher_unterwiesen"),
		VerantwortlicherName:          str("verantwortlicher_name"),
		VerantwortlicherQualifikation: str("verantwortlicher_qualifikation"),
		NacherfasstVonName:            str("nacherfasst_von_name"),
		NacherfasstVonQualifikation:   str("nacherfasst_von_qualifikation"),
		NacherfasstDatum:              s.Time("nacherfasst_datum", loc),
		NacherfasstUnterschrift:       s.String("nacherfasst_unterschrift"),
		Status:                        StatusOffen,
	}
}

// Report converts the record into the input of the incident PDF.
func (r *Record) Report(org string) pdfreport.IncidentReport {
	deref := func(t *time.Time) time.Time {
		if t == nil {
			return time.Time{}
		}
		return *t
	}
	return pdfreport.IncidentReport{
		Organization:                  org,
		AlarmAt:                       deref(r.DatumAlarmzeit),
		EndAt:                         deref(r.DatumEinsatzende),
		Stichwort:                     r.Stichwort,
		Kategorie:                     r.Kategorie,
		EinsatznummerILS:              r.EinsatznummerILS,
		Meldebild:                     r.Meldebild,
		Adresse:                       r.Adresse,
		DisponierteEMFW:               r.DisponierteEMFW,
		DisponierteEMRD:               r.DisponierteEMRD,
		PatientenDatenErhoben:         r.PatientenDatenErhoben,
		PatientName:                   r.PatientName,
		PatientAlterGeburtsdatum:      r.PatientAlterGeburtsdatum,
		PatientNummerILS:              r.PatientNummerILS,
		Sachverhalt:                   r.Sachverhalt,
		Protokollpflichtig:            r.Protokollpflichtig,
		ProtokollpflichtigBegruendung: r.ProtokollpflichtigBegruendung,
		VerantwortlicherUnterwiesen:   r.VerantwortlicherUnterwiesen,
		VerantwortlicherName:          r.VerantwortlicherName,
		VerantwortlicherQualifikation: r.VerantwortlicherQualifikation,
		NacherfasstVonName:            r.NacherfasstVonName,
		NacherfasstVonQualifikation:   r.NacherfasstVonQualifikation,
		NacherfasstAt:                 deref(r.NacherfasstDatum),
		NacherfasstUnterschrift:       r.NacherfasstUnterschrift,
	}
}
