package medication

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrRowNotFound  = errors.New("medication row not found")
	ErrInvalidRoute = errors.New("invalid administration route")
)

// Route is the clinical administration route of a medication.
type Route string

const (
	RouteIV    Route = "i.v."
	RouteIM    Route = "i.m."
	RouteSC    Route = "s.c."
	RoutePO    Route = "p.o."
	RouteInhal Route = "inhal."
)

// Routes lists the selectable routes in display order.
var Routes = []Route{RouteIV, RouteIM, RouteSC, RoutePO, RouteInhal}

// Valid reports whether r is a known route. The empty route means not yet chosen.
func (r Route) Valid() bool {
	if r == "" {
		return true
	}
	for _, known := range Routes {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRoute normalizes user input such as "IV" or "i.v" to a Route.
func ParseRoute(s string) (Route, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ".", ""))
	if key == "" {
		return "", nil
	}
	for _, r := range Routes {
		if strings.ReplaceAll(string(r), ".", "") == key {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRoute, s)
}

// Row is one administered medication. ID is generated once and never derived
// from the row's position.
type Row struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Dose  string    `json:"dose"`
	Unit  string    `json:"unit"`
	Route Route     `json:"route"`
	Time  string    `json:"time"`
	Note  string    `json:"note"`
}

// Empty reports whether the row carries no medication name.
func (r Row) Empty() bool {
	return strings.TrimSpace(r.Name) == ""
}

// IndexedRow pairs a row with its 1-based display index.
type IndexedRow struct {
	Index int `json:"index"`
	Row
}

// Validate checks every row's route.
func Validate(rows []Row) error {
	for i, r := range rows {
		if !r.Route.Valid() {
			return fmt.Errorf("row %d: %w: %q", i+1, ErrInvalidRoute, r.Route)
		}
	}
	return nil
}
