package pdfreport

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/responda/responda/internal/domain/formsnapshot"
)

const (
	deDateTime = "02.01.2006, 15:04:05"
	deDate     = "02.01.2006"
)

// dateTime formats a form timestamp the German way. Unparseable input is
// printed as is.
func (rd *Renderer) dateTime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	t, ok := formsnapshot.ParseTime(s)
	if !ok {
		return s
	}
	// values without a zone are wall-clock times and print unchanged
	if strings.HasSuffix(s, "Z") || hasOffset(s) {
		t = t.In(rd.loc())
	}
	return t.Format(deDateTime)
}

func (rd *Renderer) timeValue(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(rd.loc()).Format(deDateTime)
}

func date(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	t, ok := formsnapshot.ParseTime(s)
	if !ok {
		return s
	}
	return t.Format(deDate)
}

var offsetSuffix = regexp.MustCompile(`[+-]\d{2}:\d{2}$`)

func hasOffset(s string) bool {
	return offsetSuffix.MatchString(s)
}

func (rd *Renderer) loc() *time.Location {
	if rd.Location == nil {
		return time.UTC
	}
	return rd.Location
}

func (rd *Renderer) now() time.Time {
	if rd.Now == nil {
		return time.Now()
	}
	return rd.Now()
}

func yesNo(b bool) string {
	if b {
		return "Ja"
	}
	return "Nein"
}

func withUnit(v, unit string) string {
	if strings.TrimSpace(v) == "" {
		v = "-"
	}
	return v + " " + unit
}

var (
	unsafeName      = regexp.MustCompile(`[^a-zA-Z0-9]`)
	unsafeOperation = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// FileName returns the download name of a patient protocol,
// Notfallprotokoll_<einsatz_nr|ohne_nr>_<YYYYMMDD>.pdf. Characters other
// than ASCII letters, digits, '-' and '_' in the number become '_'.
func FileName(einsatzNr string, at time.Time) string {
	nr := unsafeOperation.ReplaceAllString(strings.TrimSpace(einsatzNr), "_")
	if nr == "" {
		nr = "ohne_nr"
	}
	return fmt.Sprintf("Notfallprotokoll_%s_%s.pdf", nr, at.Format("20060102"))
}

// IncidentFileName returns the download name of an incident record,
// Nacherfassung_<stichwort>_<YYYY-MM-DD>.pdf with the keyword reduced to
// ASCII letters and digits.
func IncidentFileName(stichwort string, at time.Time) string {
	kw := unsafeName.ReplaceAllString(strings.TrimSpace(stichwort), "_")
	if kw == "" {
		kw = "Nacherfassung"
	}
	return fmt.Sprintf("Nacherfassung_%s_%s.pdf", kw, at.Format("2006-01-02"))
}
