package signature

// Raster size stored for every signature.
const (
	StoredWidth  = 600
	StoredHeight = 200
)

// Normalize redraws a captured signature onto a width x height surface and
// returns it as a PNG data URI. An empty uri stays empty.
func Normalize(uri string, width, height int) (string, error) {
	if uri == "" {
		return "", nil
	}
	p := NewPad(width, height)
	defer p.Close()
	if err := p.Restore(uri); err != nil {
		return "", err
	}
	return p.Snapshot()
}
