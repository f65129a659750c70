// Package signature implements the freehand signature surface. Mouse and
// touch input are normalized to one pointer model; strokes are rasterized
// onto an in-memory surface that is captured as a PNG data URI.
package signature

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/responda/responda/internal/platform/datauri"
	"github.com/responda/responda/internal/platform/debounce"
)

// State of the pad's pointer state machine.
type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	if s == Drawing {
		return "drawing"
	}
	return "idle"
}

// Pointer is a mouse or touch position in client (page) coordinates.
type Pointer struct {
	ClientX float64
	ClientY float64
}

// Rect is the on-screen bounding rectangle of the surface.
type Rect struct {
	Left, Top, Width, Height float64
}

type point struct{ x, y float64 }

// Option configures a Pad.
type Option func(*Pad)

// WithLineWidth sets the stroke width in surface pixels.
func WithLineWidth(w float64) Option {
	return func(p *Pad) { p.lineWidth = w }
}

// WithOnChange registers a persistence hook. Calls are debounced by wait and
// flushed whenever a stroke ends or the pad is cleared.
func WithOnChange(wait time.Duration, fn func(dataURI string)) Option {
	return func(p *Pad) {
		p.onChange = fn
		p.debouncer = debounce.New(wait, p.persist)
	}
}

// Pad is a signature surface with an idle/drawing state machine.
type Pad struct {
	mu        sync.Mutex
	state     State
	bounds    Rect
	surface   *image.NRGBA
	last      point
	inked     bool
	lineWidth float64
	ink       color.NRGBA

	onChange  func(dataURI string)
	debouncer *debounce.Debouncer
}

// NewPad creates a blank transparent surface of width x height pixels whose
// on-screen rectangle initially matches the surface size.
func NewPad(width, height int, opts ...Option) *Pad {
	p := &Pad{
		surface:   image.NewNRGBA(image.Rect(0, 0, width, height)),
		bounds:    Rect{Width: float64(width), Height: float64(height)},
		lineWidth: 2,
		ink:       color.NRGBA{A: 0xff},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetBounds records where the surface currently sits on screen.
func (p *Pad) SetBounds(r Rect) {
	p.mu.Lock()
	p.bounds = r
	p.mu.Unlock()
}

// State returns the current pointer state.
func (p *Pad) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PointerDown starts a stroke.
func (p *Pad) PointerDown(ev Pointer) {
	p.mu.Lock()
	p.state = Drawing
	p.last = p.toSurface(ev)
	p.stamp(p.last)
	p.inked = true
	p.mu.Unlock()
	p.changed()
}

// PointerMove extends the current stroke; moves while idle are ignored.
func (p *Pad) PointerMove(ev Pointer) {
	p.mu.Lock()
	if p.state != Drawing {
		p.mu.Unlock()
		return
	}
	next := p.toSurface(ev)
	p.segment(p.last, next)
	p.last = next
	p.mu.Unlock()
	p.changed()
}

// PointerUp ends the stroke and flushes pending persistence.
func (p *Pad) PointerUp() {
	p.mu.Lock()
	wasDrawing := p.state == Drawing
	p.state = Idle
	p.mu.Unlock()
	if wasDrawing {
		p.flush()
	}
}

// PointerCancel ends the stroke when the pointer leaves the surface.
func (p *Pad) PointerCancel() {
	p.PointerUp()
}

// Clear erases the surface and persists the empty signature.
func (p *Pad) Clear() {
	p.mu.Lock()
	p.surface = image.NewNRGBA(p.surface.Bounds())
	p.inked = false
	p.state = Idle
	p.mu.Unlock()
	p.changed()
	p.flush()
}

// Empty reports whether nothing has been drawn.
func (p *Pad) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.inked
}

// Size returns the surface dimensions.
func (p *Pad) Size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.surface.Bounds()
	return b.Dx(), b.Dy()
}

// Snapshot returns the surface as a PNG data URI, or "" when empty.
func (p *Pad) Snapshot() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Resize rescales the current raster onto a new surface. Raster rescaling
// is lossy; strokes are not kept as vectors.
func (p *Pad) Resize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := image.NewNRGBA(image.Rect(0, 0, width, height))
	if p.inked {
		xdraw.CatmullRom.Scale(next, next.Bounds(), p.surface, p.surface.Bounds(), xdraw.Over, nil)
	}
	p.surface = next
	p.bounds.Width = float64(width)
	p.bounds.Height = float64(height)
}

// Restore loads a previously captured signature, scaled to the surface.
// An empty string clears the pad.
func (p *Pad) Restore(uri string) error {
	if uri == "" {
		p.mu.Lock()
		p.surface = image.NewNRGBA(p.surface.Bounds())
		p.inked = false
		p.mu.Unlock()
		return nil
	}
	_, data, err := datauri.Decode(uri)
	if err != nil {
		return fmt.Errorf("restore signature: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("restore signature: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := image.NewNRGBA(p.surface.Bounds())
	xdraw.CatmullRom.Scale(next, next.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	p.surface = next
	p.inked = true
	return nil
}

// Close stops any pending persistence without running it.
func (p *Pad) Close() {
	if p.debouncer != nil {
		p.debouncer.Stop()
	}
}

func (p *Pad) snapshotLocked() (string, error) {
	if !p.inked {
		return "", nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.surface); err != nil {
		return "", fmt.Errorf("encode signature: %w", err)
	}
	return datauri.Encode("image/png", buf.Bytes()), nil
}

func (p *Pad) changed() {
	if p.debouncer != nil {
		p.debouncer.Trigger()
	}
}

func (p *Pad) flush() {
	if p.debouncer != nil {
		p.debouncer.Flush()
	}
}

func (p *Pad) persist() {
	uri, err := p.Snapshot()
	if err != nil {
		return
	}
	p.onChange(uri)
}

// toSurface converts client coordinates to surface pixels, compensating for
// a surface displayed at a different size than its raster.
func (p *Pad) toSurface(ev Pointer) point {
	b := p.surface.Bounds()
	sx, sy := 1.0, 1.0
	if p.bounds.Width > 0 {
		sx = float64(b.Dx()) / p.bounds.Width
	}
	if p.bounds.Height > 0 {
		sy = float64(b.Dy()) / p.bounds.Height
	}
	return point{x: (ev.ClientX - p.bounds.Left) * sx, y: (ev.ClientY - p.bounds.Top) * sy}
}

// segment draws a round-capped line by stamping discs every half pixel.
func (p *Pad) segment(from, to point) {
	dx, dy := to.x-from.x, to.y-from.y
	steps := int(math.Ceil(math.Hypot(dx, dy) * 2))
	if steps == 0 {
		p.stamp(to)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p.stamp(point{x: from.x + dx*t, y: from.y + dy*t})
	}
}

func (p *Pad) stamp(c point) {
	r := p.lineWidth / 2
	if r < 0.5 {
		r = 0.5
	}
	b := p.surface.Bounds()
	minX, maxX := int(math.Floor(c.x-r)), int(math.Ceil(c.x+r))
	minY, maxY := int(math.Floor(c.y-r)), int(math.Ceil(c.y+r))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if !(image.Point{X: x, Y: y}).In(b) {
				continue
			}
			if math.Hypot(float64(x)+0.5-c.x, float64(y)+0.5-c.y) <= r+0.5 {
				p.surface.SetNRGBA(x, y, p.ink)
			}
		}
	}
}
