package pdfreport

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/go-pdf/fpdf"

	"github.com/responda/responda/internal/platform/datauri"
)

var errEmbed = errors.New("embed image")

// SignaturePlaceholder replaces a signature image that cannot be embedded.
const SignaturePlaceholder = "(Unterschrift vorhanden)"

// PhotoPlaceholder replaces a photo that cannot be embedded.
const PhotoPlaceholder = "(Foto nicht darstellbar)"

// decodeImage turns a data URI into an opaque PNG flattened onto white,
// which fpdf embeds without further interpretation.
func decodeImage(uri string) ([]byte, image.Rectangle, error) {
	_, data, err := datauri.Decode(uri)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, image.Rectangle{}, errors.New("decode image: empty bounds")
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), dst.Bounds(), nil
}

// embed draws uri fitted into the box at (x, y) of size w x h, keeping the
// aspect ratio. On any failure it writes placeholder instead and reports
// false; the document itself is never aborted.
func (p *page) embed(uri string, x, y, w, h float64, placeholder string) bool {
	data, bounds, err := decodeImage(uri)
	if err == nil {
		p.images++
		name := fmt.Sprintf("img%d", p.images)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		p.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if p.pdf.Ok() {
			iw, ih := float64(bounds.Dx()), float64(bounds.Dy())
			scale := w / iw
			if s := h / ih; s < scale {
				scale = s
			}
			p.pdf.ImageOptions(name, x, y, iw*scale, ih*scale, false, opts, 0, "")
		}
		if p.pdf.Err() {
			p.pdf.ClearError()
			err = errEmbed
		}
	}
	if err != nil {
		p.pdf.SetFont("Helvetica", "", 8)
		p.pdf.Text(x, y+8, p.tr(placeholder))
		return false
	}
	return true
}
