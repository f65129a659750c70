// Package photo downsizes and recompresses incident photos before they are
// attached to a protocol.
package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/responda/responda/internal/platform/datauri"
)

var (
	ErrDecode   = errors.New("unsupported or corrupt image")
	ErrTooLarge = errors.New("image dimensions exceed the pixel limit")
)

// MaxSourcePixels bounds the decoded size of an input image. A 12 MP phone
// photo is well inside it.
const MaxSourcePixels = 40_000_000

// Options bound the output size and encoding quality.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// DefaultOptions matches the limits used for protocol photos.
func DefaultOptions() Options {
	return Options{MaxWidth: 1200, MaxHeight: 1200, Quality: 70}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxWidth <= 0 {
		o.MaxWidth = d.MaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = d.MaxHeight
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = d.Quality
	}
	return o
}

// Attachment is a compressed photo as stored in the protocol payload.
type Attachment struct {
	DataURI string `json:"data_uri"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bytes   int    `json:"bytes"`
}

// ScaleFactor returns min(maxW/w, maxH/h, 1). It never exceeds 1, so images
// are never upscaled.
func ScaleFactor(w, h, maxW, maxH int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	f := 1.0
	if sx := float64(maxW) / float64(w); sx < f {
		f = sx
	}
	if sy := float64(maxH) / float64(h); sy < f {
		f = sy
	}
	return f
}

// TargetSize returns the output dimensions for a source of w x h.
func TargetSize(w, h int, opts Options) (int, int) {
	opts = opts.withDefaults()
	f := ScaleFactor(w, h, opts.MaxWidth, opts.MaxHeight)
	tw, th := int(float64(w)*f+0.5), int(float64(h)*f+0.5)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}

// Compress decodes r, scales it into the bounding box and re-encodes it as
// JPEG at the configured quality. Images above MaxSourcePixels are rejected
// before their pixels are decoded.
func Compress(r io.Reader, opts Options) (Attachment, error) {
	opts = opts.withDefaults()

	data, err := io.ReadAll(r)
	if err != nil {
		return Attachment{}, fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return Attachment{}, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	sb := src.Bounds()
	tw, th := TargetSize(sb.Dx(), sb.Dy(), opts)

	// JPEG has no alpha channel, so flatten onto white first.
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if tw == sb.Dx() && th == sb.Dy() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return Attachment{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Attachment{
		DataURI: datauri.Encode("image/jpeg", buf.Bytes()),
		Width:   tw,
		Height:  th,
		Bytes:   buf.Len(),
	}, nil
}

// CompressAll compresses a batch with at most limit workers. Results keep
// the input order; the first failure cancels the remaining work.
func CompressAll(ctx context.Context, files [][]byte, opts Options, limit int) ([]Attachment, error) {
	if limit <= 0 {
		limit = 4
	}
	out := make([]Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range files {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := Compress(bytes.NewReader(files[i]), opts)
			if err != nil {
				return fmt.Errorf("photo %d: %w", i+1, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CompressDataURIs decodes each data URI (or bare base64 string) and
// compresses the batch like CompressAll, returning JPEG data URIs.
func CompressDataURIs(ctx context.Context, uris []string, opts Options, limit int) ([]string, error) {
	files := make([][]byte, len(uris))
	for i, u := range uris {
		data, err := datauri.DecodeBase64(u)
		if err != nil {
			return nil, fmt.Errorf("photo %d: %w: %v", i+1, ErrDecode, err)
		}
		files[i] = data
	}
	out, err := CompressAll(ctx, files, opts, limit)
	if err != nil {
		return nil, err
	}
	list := make([]string, len(out))
	for i, a := range out {
		list[i] = a.DataURI
	}
	return list, nil
}
