package formsnapshot

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-05-01T14:02", time.Date(2026, 5, 1, 14, 2, 0, 0, time.UTC), true},
		{"2026-05-01T14:02:09", time.Date(2026, 5, 1, 14, 2, 9, 0, time.UTC), true},
		{"2026-05-01", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"2026-05-01T12:00:00Z", time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"gestern", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseTime(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseTime(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSnapshotTime(t *testing.T) {
	s := Snapshot{"a": "2026-05-01T14:02", "b": "", "c": true}
	if got := s.Time("a", time.UTC); got == nil || got.Hour() != 14 {
		t.Errorf("expected 14:02, got %v", got)
	}
	if s.Time("b", time.UTC) != nil || s.Time("c", time.UTC) != nil || s.Time("missing", time.UTC) != nil {
		t.Error("expected nil for empty, non-time and missing values")
	}
}

func TestParseTimeIn_Location(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	got, ok := ParseTimeIn("2026-05-01T14:02", berlin)
	if !ok {
		t.Fatal("expected parse")
	}
	if got.UTC().Hour() != 12 {
		t.Errorf("expected 12 UTC, got %v", got.UTC())
	}
	got, _ = ParseTimeIn("2026-05-01T14:02:00Z", berlin)
	if got.UTC().Hour() != 14 {
		t.Errorf("explicit zone must win, got %v", got.UTC())
	}
}
