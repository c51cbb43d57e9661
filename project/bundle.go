// Package project persists finished recordings as self-contained bundle
// directories and keeps a small on-disk index of them.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/altic-dev/PixelMark/events"
	"github.com/altic-dev/PixelMark/geometry"
)

// Ext is the bundle directory extension.
const Ext = ".pxm"

// manifestVersion is bumped when the bundle layout changes.
const manifestVersion = 1

const (
	manifestName  = "project.json"
	mediaName     = "recording.mp4"
	eventsName    = "events.json"
	thumbnailName = "thumbnail.png"
)

var (
	// ErrNotBundle is returned when Open is pointed at something that is not a
	// recording bundle.
	ErrNotBundle = errors.New("project: not a recording bundle")
	// ErrVersion is returned for bundles written by a newer layout.
	ErrVersion = errors.New("project: unsupported bundle version")
)

// Manifest is the bundle's project.json.
type Manifest struct {
	Version   int              `json:"version"`
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at"`
	Duration  float64          `json:"duration"` // seconds
	Media     string           `json:"media"`
	Events    string           `json:"events"`
	Thumbnail string           `json:"thumbnail,omitempty"`
	Geometry  geometry.Capture `json:"geometry"`
	Target    geometry.Target  `json:"target"`
}

// Bundle is one recording on disk: a directory holding the media file, the
// event log, a thumbnail, and the manifest tying them together.
type Bundle struct {
	Path     string
	Manifest Manifest
}

// Create makes a new empty bundle directory under dir. The session writes its
// media into MediaPath before Finalize seals the bundle.
func Create(dir, name string) (*Bundle, error) {
	name = sanitizeName(name)
	path := filepath.Join(dir, name+Ext)

	// Never clobber an existing recording with the same name.
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s %d%s", name, i, Ext))
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create bundle dir: %w", err)
	}

	return &Bundle{
		Path: path,
		Manifest: Manifest{
			Version:   manifestVersion,
			ID:        uuid.New().String(),
			Name:      name,
			CreatedAt: time.Now(),
			Media:     mediaName,
			Events:    eventsName,
		},
	}, nil
}

// MediaPath is where the session's media file belongs.
func (b *Bundle) MediaPath() string { return filepath.Join(b.Path, b.Manifest.Media) }

// EventsPath is the bundle's event log file.
func (b *Bundle) EventsPath() string { return filepath.Join(b.Path, b.Manifest.Events) }

// ThumbnailPath is the bundle's preview image, which may not exist.
func (b *Bundle) ThumbnailPath() string { return filepath.Join(b.Path, thumbnailName) }

// Finalize writes the event log and manifest after a session ends. Duration is
// probed from the media file; the thumbnail is extracted best-effort.
func (b *Bundle) Finalize(log events.Log, geom geometry.Capture, target geometry.Target) error {
	data, err := log.Encode()
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	if err := os.WriteFile(b.EventsPath(), data, 0644); err != nil {
		return fmt.Errorf("write events: %w", err)
	}

	b.Manifest.Geometry = geom
	b.Manifest.Target = target

	if d, err := probeDuration(b.MediaPath()); err == nil {
		b.Manifest.Duration = d
	}
	if err := extractThumbnail(b.MediaPath(), b.ThumbnailPath(), b.Manifest.Duration); err == nil {
		b.Manifest.Thumbnail = thumbnailName
	}

	return b.writeManifest()
}

// Discard removes a bundle that never produced usable media.
func (b *Bundle) Discard() error {
	return os.RemoveAll(b.Path)
}

func (b *Bundle) writeManifest() error {
	data, err := json.MarshalIndent(b.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.Path, manifestName), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Open reads an existing bundle's manifest.
func Open(path string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(path, manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotBundle, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Version > manifestVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, m.Version)
	}

	b := &Bundle{Path: path, Manifest: m}

	// Bundles sealed before probing worked carry a zero duration; recompute
	// it when the media is available.
	if m.Duration == 0 {
		if d, err := probeDuration(b.MediaPath()); err == nil {
			b.Manifest.Duration = d
		}
	}
	return b, nil
}

// Events loads and validates the bundle's event log.
func (b *Bundle) Events() (events.Log, error) {
	data, err := os.ReadFile(b.EventsPath())
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events.Decode(data)
}

// sanitizeName keeps bundle names filesystem-safe.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Recording " + time.Now().Format("2006-01-02 15.04.05")
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}
