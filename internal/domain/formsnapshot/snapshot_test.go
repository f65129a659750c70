package formsnapshot

import (
	"reflect"
	"testing"
)

func protocolForm() *Form {
	return NewForm(
		&Control{Name: "name", Kind: KindText, Value: "Mustermann"},
		&Control{Name: "vorname", Kind: KindText, Value: "Erika"},
		&Control{Name: "notfallgeschehen", Kind: KindTextarea, Value: "Sturz von Leiter"},
		&Control{Name: "einsatz_art", Kind: KindSelect, Value: "Notfall"},
		&Control{Name: "bewusstlos", Kind: KindCheckbox, Checked: true},
		&Control{Name: "allergien", Kind: KindCheckbox},
		&Control{Name: "geschlecht", Kind: KindRadio, Value: "m"},
		&Control{Name: "geschlecht", Kind: KindRadio, Value: "w", Checked: true},
		&Control{Name: "rr_sys", Kind: KindNumber, Value: "95"},
	)
}

func TestCapture_ControlKinds(t *testing.T) {
	s := Capture(protocolForm())

	if s["name"] != "Mustermann" {
		t.Errorf("expected name Mustermann, got %v", s["name"])
	}
	if s["bewusstlos"] != true {
		t.Errorf("expected checkbox bewusstlos=true, got %v", s["bewusstlos"])
	}
	if s["allergien"] != false {
		t.Errorf("expected checkbox allergien=false, got %v", s["allergien"])
	}
	if s["geschlecht"] != "w" {
		t.Errorf("expected checked radio value w, got %v", s["geschlecht"])
	}
	if s.Int("rr_sys") != 95 {
		t.Errorf("expected rr_sys 95, got %d", s.Int("rr_sys"))
	}
}

func TestCapture_UncheckedRadioGroupOmitted(t *testing.T) {
	f := NewForm(
		&Control{Name: "transport", Kind: KindRadio, Value: "ja"},
		&Control{Name: "transport", Kind: KindRadio, Value: "nein"},
	)
	s := Capture(f)
	if _, ok := s["transport"]; ok {
		t.Error("expected no value for radio group without selection")
	}
}

func TestCapture_FirstOccurrenceWins(t *testing.T) {
	f := NewForm(
		&Control{Name: "dup", Kind: KindText, Value: "first"},
		&Control{Name: "dup", Kind: KindText, Value: "second"},
	)
	if got := Capture(f).String("dup"); got != "first" {
		t.Errorf("expected first, got %s", got)
	}
}

func TestApply_SkipsAbsentNames(t *testing.T) {
	f := protocolForm()
	Apply(f, Snapshot{"name": "Muster"})

	if f.Control("name").Value != "Muster" {
		t.Errorf("expected name to be applied, got %s", f.Control("name").Value)
	}
	if f.Control("vorname").Value != "Erika" {
		t.Errorf("expected vorname untouched, got %s", f.Control("vorname").Value)
	}
}

func TestApply_RadioAndCheckbox(t *testing.T) {
	f := protocolForm()
	Apply(f, Snapshot{"geschlecht": "m", "bewusstlos": false, "allergien": "on"})

	s := Capture(f)
	if s["geschlecht"] != "m" {
		t.Errorf("expected radio m, got %v", s["geschlecht"])
	}
	if s["bewusstlos"] != false {
		t.Errorf("expected bewusstlos false, got %v", s["bewusstlos"])
	}
	if s["allergien"] != true {
		t.Errorf("expected allergien true from string 'on', got %v", s["allergien"])
	}
}

func TestRoundTrip(t *testing.T) {
	original := Capture(protocolForm())

	blank := NewForm(
		&Control{Name: "name", Kind: KindText},
		&Control{Name: "vorname", Kind: KindText},
		&Control{Name: "notfallgeschehen", Kind: KindTextarea},
		&Control{Name: "einsatz_art", Kind: KindSelect},
		&Control{Name: "bewusstlos", Kind: KindCheckbox},
		&Control{Name: "allergien", Kind: KindCheckbox, Checked: true},
		&Control{Name: "geschlecht", Kind: KindRadio, Value: "m", Checked: true},
		&Control{Name: "geschlecht", Kind: KindRadio, Value: "w"},
		&Control{Name: "rr_sys", Kind: KindNumber},
	)
	Apply(blank, original)

	if got := Capture(blank); !reflect.DeepEqual(got, original) {
		t.Errorf("round trip mismatch:\n got  %v\n want %v", got, original)
	}
}

func TestDecode_NormalizesNumbers(t *testing.T) {
	s, err := Decode([]byte(`{"hf": 88, "name": "Erika", "bewusstlos": true, "note": null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s["hf"] != "88" {
		t.Errorf("expected hf as string 88, got %#v", s["hf"])
	}
	if s["note"] != "" {
		t.Errorf("expected null to become empty string, got %#v", s["note"])
	}
	if !s.Bool("bewusstlos") {
		t.Error("expected bool to survive normalization")
	}
}

func TestWithout(t *testing.T) {
	s := Snapshot{"a": "1", "qsofa": "2"}
	out := s.Without("qsofa")
	if _, ok := out["qsofa"]; ok {
		t.Error("expected qsofa removed")
	}
	if _, ok := s["qsofa"]; !ok {
		t.Error("expected original snapshot untouched")
	}
}
