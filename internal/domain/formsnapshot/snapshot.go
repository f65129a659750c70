// Package formsnapshot mirrors a form's controls into a flat key/value
// snapshot and back. Checkboxes map to bool, radio groups to the value of the
// checked option and every other control to its string value.
package formsnapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the type of an input control.
type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindHidden   Kind = "hidden"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
)

// Control is one input-like element of a form. Radio groups are several
// controls sharing a Name, each with its own Value.
type Control struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Value   string `json:"value"`
	Checked bool   `json:"checked,omitempty"`
}

// Form is the ordered set of controls currently mounted.
type Form struct {
	Controls []*Control `json:"controls"`
}

// NewForm builds a form from controls in document order.
func NewForm(controls ...*Control) *Form {
	return &Form{Controls: controls}
}

// Control returns the first control with the given name.
func (f *Form) Control(name string) *Control {
	for _, c := range f.Controls {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Names returns the distinct control names in document order.
func (f *Form) Names() []string {
	seen := make(map[string]bool, len(f.Controls))
	names := make([]string, 0, len(f.Controls))
	for _, c := range f.Controls {
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	return names
}

// Snapshot maps field names to string or bool values.
type Snapshot map[string]any

// Capture walks every control of f. The first occurrence of a name wins and a
// radio group with no checked option contributes nothing.
func Capture(f *Form) Snapshot {
	s := make(Snapshot, len(f.Controls))
	for _, c := range f.Controls {
		if c.Name == "" {
			continue
		}
		switch c.Kind {
		case KindCheckbox:
			if _, ok := s[c.Name]; !ok {
				s[c.Name] = c.Checked
			}
		case KindRadio:
			if c.Checked {
				if _, ok := s[c.Name]; !ok {
					s[c.Name] = c.Value
				}
			}
		default:
			if _, ok := s[c.Name]; !ok {
				s[c.Name] = c.Value
			}
		}
	}
	return s
}

// Apply sets every control from s. Controls whose name is absent from s are
// left untouched.
func Apply(f *Form, s Snapshot) {
	for _, c := range f.Controls {
		v, ok := s[c.Name]
		if !ok {
			continue
		}
		switch c.Kind {
		case KindCheckbox:
			c.Checked = toBool(v)
		case KindRadio:
			c.Checked = toString(v) == c.Value
		default:
			c.Value = toString(v)
		}
	}
}

// String returns the value of key as a string; missing keys yield "".
func (s Snapshot) String(key string) string {
	return toString(s[key])
}

// Bool returns the value of key as a bool; missing keys yield false.
func (s Snapshot) Bool(key string) bool {
	return toBool(s[key])
}

// Int parses the value of key; empty or invalid values yield 0.
func (s Snapshot) Int(key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.String(key)))
	if err != nil {
		return 0
	}
	return n
}

// Clone returns a shallow copy of s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Without returns a copy of s with keys removed.
func (s Snapshot) Without(keys ...string) Snapshot {
	out := s.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize converts decoded JSON values (numbers, nil) into the string and
// bool values a snapshot holds.
func (s Snapshot) Normalize() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		switch x := v.(type) {
		case bool:
			out[k] = x
		case string:
			out[k] = x
		case nil:
			out[k] = ""
		default:
			out[k] = toString(x)
		}
	}
	return out
}

// Decode parses a serialized snapshot.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return s.Normalize(), nil
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "on", "1", "ja":
			return true
		}
	}
	return false
}
