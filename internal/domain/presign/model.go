package presign

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("upload request not found")
	ErrDuplicateKey = errors.New("request token already used")
)

const (
	DefaultMimeType = "application/pdf"
	DefaultExpiry   = 86400
	MinExpiry       = 60
	MaxExpiry       = 7 * 86400
	maxNameLength   = 120
)

const (
	BackendS3    = "s3"
	BackendNhost = "nhost"
)

// Request is the body accepted by POST /presign.
type Request struct {
	FileB64      string  `json:"file_b64"`
	Filename     string  `json:"filename,omitempty"`
	MimeType     string  `json:"mime_type,omitempty"`
	ExpiresIn    Seconds `json:"expires_in,omitempty"`
	RequestToken string  `json:"request_token,omitempty"`
}

type Response struct {
	OK        bool   `json:"ok"`
	URL       string `json:"url"`
	ID        string `json:"id"`
	ExpiresIn int    `json:"expires_in"`
}

// Seconds accepts a JSON number or a numeric string. Anything that does not
// parse as an integer is treated as absent.
type Seconds int

func (s *Seconds) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var str string
		if json.Unmarshal(b, &str) != nil {
			*s = 0
			return nil
		}
		n = json.Number(strings.TrimSpace(str))
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		*s = 0
		return nil
	}
	*s = Seconds(int(f))
	return nil
}

// UploadRequest remembers which stored object a request token produced so a
// retried upload reuses it.
type UploadRequest struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RequestToken string    `db:"request_token" json:"request_token"`
	ObjectID     string    `db:"object_id" json:"object_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	Size         int64     `db:"size" json:"size"`
	Backend      string    `db:"backend" json:"backend"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)

// SanitizeFilename replaces each run of characters outside [A-Za-z0-9_.-]
// with a single underscore and caps the result at 120 characters. An empty
// result falls back to file-<unix ms>.pdf.
func SanitizeFilename(name string, now time.Time) string {
	safe := unsafeChars.ReplaceAllString(name, "_")
	if len(safe) > maxNameLength {
		safe = safe[:maxNameLength]
	}
	if safe == "" {
		safe = fmt.Sprintf("file-%d.pdf", now.UnixMilli())
	}
	return safe
}

// ClampExpiry applies the default when seconds is absent (zero) and bounds
// the result to [MinExpiry, MaxExpiry]. Negative values clamp to MinExpiry.
func ClampExpiry(seconds int) int {
	if seconds == 0 {
		seconds = DefaultExpiry
	}
	return max(MinExpiry, min(seconds, MaxExpiry))
}
