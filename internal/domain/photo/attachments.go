package photo

import (
	"errors"
	"sync"
)

var ErrIndexOutOfRange = errors.New("photo index out of range")

// Attachments is the ordered photo list of one protocol. Photos are only
// appended or removed explicitly by index.
type Attachments struct {
	mu     sync.RWMutex
	photos []string
}

// NewAttachments wraps existing data URIs.
func NewAttachments(uris ...string) *Attachments {
	return &Attachments{photos: append([]string(nil), uris...)}
}

// Append adds photos at the end.
func (a *Attachments) Append(uris ...string) {
	a.mu.Lock()
	a.photos = append(a.photos, uris...)
	a.mu.Unlock()
}

// Remove deletes the photo at the 0-based index.
func (a *Attachments) Remove(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.photos) {
		return ErrIndexOutOfRange
	}
	a.photos = append(a.photos[:index], a.photos[index+1:]...)
	return nil
}

// List returns a copy of the data URIs.
func (a *Attachments) List() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.photos...)
}

// Len returns the number of photos.
func (a *Attachments) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.photos)
}
