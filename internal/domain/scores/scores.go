// Package scores computes the derived clinical scores shown on the
// emergency protocol: the Glasgow Coma Scale sum and the quick SOFA score.
package scores

import (
	"strconv"
	"strings"
)

// Unset is displayed wherever a score has no contributing inputs.
const Unset = "—"

// qSOFA thresholds.
const (
	QSOFAGCSBelow        = 15  // gcs < 15 scores
	QSOFARespRateAtLeast = 22  // af >= 22 scores
	QSOFASystolicAtMost  = 100 // rr_sys <= 100 scores
)

// GCS sub-score ranges. Zero means the item was not answered.
const (
	MaxEye    = 4
	MaxVerbal = 5
	MaxMotor  = 6
)

// GCSResult is the Glasgow Coma Scale sum.
type GCSResult struct {
	Sum int  `json:"sum"`
	Set bool `json:"set"`
}

// Display returns the sum or the unset marker.
func (r GCSResult) Display() string {
	if !r.Set {
		return Unset
	}
	return strconv.Itoa(r.Sum)
}

// GCS sums eye, verbal and motor responses. Out-of-range sub-scores are
// clamped into their valid range; a zero sum is reported as unset.
func GCS(eye, verbal, motor int) GCSResult {
	sum := clamp(eye, 0, MaxEye) + clamp(verbal, 0, MaxVerbal) + clamp(motor, 0, MaxMotor)
	return GCSResult{Sum: sum, Set: sum > 0}
}

// Vitals are the inputs of the qSOFA score. Zero means not measured.
type Vitals struct {
	GCS             int `json:"gcs"`
	RespiratoryRate int `json:"af"`
	Systolic        int `json:"rr_sys"`
}

// QSOFAResult is the quick SOFA score in 0..3.
type QSOFAResult struct {
	Score int  `json:"score"`
	Set   bool `json:"set"`
}

// Display returns the score or the unset marker.
func (r QSOFAResult) Display() string {
	if !r.Set {
		return Unset
	}
	return strconv.Itoa(r.Score)
}

// QSOFA awards one point each for altered mentation (gcs below 15), a
// respiratory rate of 22 or more and a systolic pressure of 100 or less.
// The rate and pressure bounds are inclusive, the GCS bound is strict.
func QSOFA(v Vitals) QSOFAResult {
	if v.GCS == 0 && v.RespiratoryRate == 0 && v.Systolic == 0 {
		return QSOFAResult{}
	}
	score := 0
	if v.GCS > 0 && v.GCS < QSOFAGCSBelow {
		score++
	}
	if v.RespiratoryRate >= QSOFARespRateAtLeast {
		score++
	}
	if v.Systolic > 0 && v.Systolic <= QSOFASystolicAtMost {
		score++
	}
	return QSOFAResult{Score: score, Set: true}
}

// Derived holds every score computed from one snapshot.
type Derived struct {
	GCS   GCSResult   `json:"gcs"`
	QSOFA QSOFAResult `json:"qsofa"`
}

// DisplayKeys are the snapshot keys that only ever hold derived values.
var DisplayKeys = []string{"gcs_sum", "qsofa", "qsofa_display", "qsofa_summary"}

// Lookup reads raw string inputs by field name.
type Lookup func(key string) string

// Compute derives the scores from raw form inputs.
func Compute(get Lookup) Derived {
	gcs := GCS(atoi(get("gcs_e")), atoi(get("gcs_v")), atoi(get("gcs_m")))
	q := QSOFA(Vitals{
		GCS:             gcs.Sum,
		RespiratoryRate: atoi(get("af")),
		Systolic:        atoi(get("rr_sys")),
	})
	return Derived{GCS: gcs, QSOFA: q}
}

// Bind returns the value of every display location, all taken from the same
// computed result.
func (d Derived) Bind() map[string]string {
	q := d.QSOFA.Display()
	return map[string]string{
		"gcs_sum":       d.GCS.Display(),
		"qsofa":         q,
		"qsofa_display": q,
		"qsofa_summary": "qSOFA: " + q,
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
