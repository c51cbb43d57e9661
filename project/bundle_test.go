package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/altic-dev/PixelMark/events"
	"github.com/altic-dev/PixelMark/geometry"
)

func testGeometry() geometry.Capture {
	return geometry.Capture{
		PixelWidth:  1920,
		PixelHeight: 1080,
		Scale:       1,
		Origin:      geometry.Rect{Width: 1920, Height: 1080},
	}
}

func testTarget() geometry.Target {
	return geometry.NewDisplayTarget(geometry.Display{
		ID:    1,
		Frame: geometry.Rect{Width: 1920, Height: 1080},
		Scale: 1,
	})
}

func TestCreateAvoidsNameCollision(t *testing.T) {
	dir := t.TempDir()

	first, err := Create(dir, "Demo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := Create(dir, "Demo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if first.Path == second.Path {
		t.Fatalf("both bundles at %s", first.Path)
	}
	if filepath.Base(second.Path) != "Demo 2"+Ext {
		t.Fatalf("second bundle named %s", filepath.Base(second.Path))
	}
	if first.Manifest.ID == second.Manifest.ID {
		t.Fatal("bundle IDs must be unique")
	}
}

func TestCreateSanitizesName(t *testing.T) {
	b, err := Create(t.TempDir(), `demo/take:2`)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if strings.ContainsAny(filepath.Base(b.Path), `/:`) {
		t.Fatalf("unsafe bundle name %s", filepath.Base(b.Path))
	}
}

func TestFinalizeAndOpenRoundTrip(t *testing.T) {
	b, err := Create(t.TempDir(), "Session")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Stand-in media file; duration probing is best-effort and may fail.
	if err := os.WriteFile(b.MediaPath(), []byte("not really mp4"), 0644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	log := events.Log{
		events.Cursor(0, 10, 20),
		events.MouseDown(0.5, 10, 20, events.ButtonLeft),
		events.MouseUp(0.7, 10, 20, events.ButtonLeft),
	}
	if err := b.Finalize(log, testGeometry(), testTarget()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	opened, err := Open(b.Path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := opened.Manifest
	if m.ID != b.Manifest.ID || m.Name != "Session" {
		t.Fatalf("manifest = %+v", m)
	}
	if m.Geometry.PixelWidth != 1920 || m.Target.Kind != geometry.TargetDisplay {
		t.Fatalf("manifest geometry/target = %+v", m)
	}

	got, err := opened.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != len(log) {
		t.Fatalf("got %d events, want %d", len(got), len(log))
	}
	if got[1].Kind != events.KindMouseDown {
		t.Fatalf("event 1 = %+v", got[1])
	}
}

func TestOpenRejectsNonBundle(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNotBundle) {
		t.Fatalf("err = %v, want ErrNotBundle", err)
	}
}

func TestOpenRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	manifest := `{"version": 99, "id": "x", "name": "future"}`
	if err := os.WriteFile(filepath.Join(dir, manifestName), []byte(manifest), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Open(dir); !errors.Is(err, ErrVersion) {
		t.Fatalf("err = %v, want ErrVersion", err)
	}
}

func TestDiscard(t *testing.T) {
	b, err := Create(t.TempDir(), "scrap")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := b.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := os.Stat(b.Path); !os.IsNotExist(err) {
		t.Fatal("bundle dir still present after Discard")
	}
}
