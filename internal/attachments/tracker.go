// Package attachments tracks images uploaded for an entry that is still
// being edited.
package attachments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/logging"
)

// AllowedExtensions are the image types the media store accepts.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// MediaStore uploads one image and returns its stored name, caption and tags.
type MediaStore interface {
	UploadImage(ctx context.Context, filename string, r io.Reader) (journal.Image, error)
}

// Saver persists an entry.
type Saver interface {
	Save(ctx context.Context, req journal.SaveRequest) (string, error)
}

// Tracker holds the ordered staged set of the entry being edited.
type Tracker struct {
	media MediaStore
	log   *slog.Logger

	mu    sync.Mutex
	items []journal.Image
}

// NewTracker returns an empty tracker uploading through media.
func NewTracker(media MediaStore, log *slog.Logger) *Tracker {
	if log == nil {
		log = logging.Discard()
	}
	return &Tracker{media: media, log: log.With("component", "attachments")}
}

// CheckExtension rejects paths whose extension the media store does not take.
func CheckExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(AllowedExtensions, ext) {
		return fmt.Errorf("unsupported image type %q", ext)
	}
	return nil
}

// Add uploads the file at path and stages the result. The staged set is
// unchanged when the upload fails.
func (t *Tracker) Add(ctx context.Context, path string) (journal.Image, error) {
	if err := CheckExtension(path); err != nil {
		return journal.Image{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return journal.Image{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, err := t.media.UploadImage(ctx, filepath.Base(path), f)
	if err != nil {
		t.log.Warn("image upload failed", "path", path, "error", err)
		return journal.Image{}, fmt.Errorf("upload image: %w", err)
	}
	img.Tags = journal.NormalizeTags(img.Tags)

	t.Append(img)
	t.log.Info("image staged", "filename", img.Filename, "tags", len(img.Tags))
	return img, nil
}

// Append stages an already uploaded image.
func (t *Tracker) Append(img journal.Image) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, img)
}

// Remove unstages the image at position i; the rest keep their order.
func (t *Tracker) Remove(i int) (journal.Image, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.items) {
		return journal.Image{}, fmt.Errorf("remove attachment %d: index out of range [0,%d)", i, len(t.items))
	}
	img := t.items[i]
	t.items = slices.Delete(t.items, i, i+1)
	return img, nil
}

// Load replaces the whole staged set with images, typically the committed
// attachments of the entry now being edited.
func (t *Tracker) Load(images []journal.Image) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = slices.Clone(images)
}

// Items returns a copy of the staged set in order.
func (t *Tracker) Items() []journal.Image {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.items)
}

// Len returns the number of staged images.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Clear empties the staged set.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
}

// Commit saves the entry with the full staged set as its image list and
// clears the set once the entry exists. A saver that stored the entry but
// failed afterwards yields both the id and its error.
func (t *Tracker) Commit(ctx context.Context, s Saver, audioFilename, transcript string) (string, error) {
	images := t.Items()
	id, err := s.Save(ctx, journal.SaveRequest{
		AudioFilename: audioFilename,
		Transcript:    transcript,
		Images:        images,
	})
	if id == "" && err != nil {
		return "", fmt.Errorf("commit entry: %w", err)
	}
	t.Clear()
	t.log.Info("entry committed", "id", id, "images", len(images))
	return id, err
}
