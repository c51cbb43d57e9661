package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/altic-dev/PixelMark/capture"
	"github.com/altic-dev/PixelMark/config"
	"github.com/altic-dev/PixelMark/events"
	"github.com/altic-dev/PixelMark/geometry"
	"github.com/altic-dev/PixelMark/internal/types"
	"github.com/altic-dev/PixelMark/media"
	"github.com/altic-dev/PixelMark/project"
	"github.com/altic-dev/PixelMark/replay"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "displays":
		err = cmdDisplays()
	case "record":
		err = cmdRecord(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "info":
		err = cmdInfo(os.Args[2:])
	case "cursor":
		err = cmdCursor(os.Args[2:])
	case "version":
		fmt.Printf("pixelmark %s (%s, %s)\n", version, commit, date)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: pixelmark <command> [flags]

commands:
  displays          list connected displays
  record            record a display to a bundle
  list              list recent recordings
  info <bundle>     show a bundle's manifest and event counts
  cursor <bundle>   reconstruct the cursor at a playback time
  version           print version
`)
}

func cmdDisplays() error {
	displays, err := capture.Displays()
	if err != nil {
		return err
	}
	for _, d := range displays {
		primary := ""
		if d.Frame.X == 0 && d.Frame.Y == 0 {
			primary = "  (primary)"
		}
		fmt.Printf("%d: %.0fx%.0f at (%.0f, %.0f) scale %.1f%s\n",
			d.ID, d.Frame.Width, d.Frame.Height, d.Frame.X, d.Frame.Y, d.Scale, primary)
	}
	return nil
}

func cmdRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	name := fs.String("name", "", "recording name (default: timestamped)")
	displayID := fs.Uint("display", 0, "display ID to record (default: primary)")
	duration := fs.Duration("duration", 0, "stop automatically after this long (default: run until interrupted)")
	fps := fs.Int("fps", 0, "frames per second (default: from config)")
	codec := fs.String("codec", "", "h264 or h265 (default: from config)")
	quality := fs.String("quality", "", "low, standard, or high (default: from config)")
	audio := fs.Bool("audio", false, "include system audio")
	outDir := fs.String("out", "", "output directory (default: from config)")
	fs.Parse(args)

	settings, err := config.Load()
	if err != nil {
		return err
	}
	if *fps > 0 {
		settings.FrameRate = *fps
	}
	if *codec != "" {
		settings.Codec = *codec
	}
	if *quality != "" {
		settings.Quality = *quality
	}
	if *audio {
		settings.IncludeSystemAudio = true
	}
	if *outDir != "" {
		settings.OutputDir = *outDir
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	displays, err := capture.Displays()
	if err != nil {
		return err
	}
	target, err := pickDisplay(displays, uint32(*displayID))
	if err != nil {
		return err
	}

	dir, err := settings.OutputPath()
	if err != nil {
		return err
	}
	bundle, err := project.Create(dir, *name)
	if err != nil {
		return err
	}

	geom, err := geometry.Resolve(target, displays)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session := capture.NewSession()
	session.OnInterrupt = func(cause error, _ capture.Result) {
		slog.Error("capture interrupted, finalizing what was written", "error", cause)
		cancel()
	}

	err = session.Start(ctx, capture.SessionConfig{
		Target:             target,
		Displays:           displays,
		Dest:               bundle.MediaPath(),
		FrameRate:          settings.FrameRate,
		Codec:              settings.Codec,
		BitrateKbps:        settings.BitrateKbps(geom.PixelWidth, geom.PixelHeight),
		IncludeSystemAudio: settings.IncludeSystemAudio,
		FFmpegPath:         settings.FFmpegPath,
	})
	if err != nil {
		bundle.Discard()
		return err
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var timeout <-chan time.Time
	if *duration > 0 {
		slog.Info("recording, will stop automatically", "after", *duration)
		timeout = time.After(*duration)
	} else {
		slog.Info("recording, press Ctrl+C to stop")
	}
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-timeout:
			break wait
		case <-ticker.C:
			st := session.Status()
			slog.Info("still recording", "elapsed", fmt.Sprintf("%.0fs", st.Elapsed), "size", fmt.Sprintf("%dx%d", st.Width, st.Height))
		}
	}

	res, err := session.Stop()
	if err != nil {
		bundle.Discard()
		return err
	}
	if res.Media.State != media.StateCompleted {
		bundle.Discard()
		return fmt.Errorf("recording failed: %w", res.Media.Err)
	}

	if err := bundle.Finalize(res.Events, res.Geometry, target); err != nil {
		return err
	}
	if err := indexBundle(bundle); err != nil {
		slog.Warn("could not index recording", "error", err)
	}

	fmt.Println(bundle.Path)
	return nil
}

func pickDisplay(displays []geometry.Display, id uint32) (geometry.Target, error) {
	if id == 0 {
		primary, ok := geometry.PrimaryDisplay(displays)
		if !ok {
			return geometry.Target{}, fmt.Errorf("no displays connected")
		}
		return geometry.NewDisplayTarget(primary), nil
	}
	d, ok := geometry.DisplayByID(id, displays)
	if !ok {
		return geometry.Target{}, fmt.Errorf("display %d not connected", id)
	}
	return geometry.NewDisplayTarget(d), nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of recordings to show")
	fs.Parse(args)

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	infos, err := lib.Recent(*limit)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("%s  %6.1fs  %s\n", info.CreatedAt.Format("2006-01-02 15:04"), info.Duration, info.Path)
	}
	return nil
}

func cmdInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: pixelmark info <bundle>")
	}
	b, err := project.Open(args[0])
	if err != nil {
		return err
	}

	log, err := b.Events()
	if err != nil {
		return err
	}
	counts := map[events.Kind]int{}
	for _, e := range log {
		counts[e.Kind]++
	}

	m := b.Manifest
	fmt.Printf("name:      %s\n", m.Name)
	fmt.Printf("created:   %s\n", m.CreatedAt.Format(time.RFC3339))
	fmt.Printf("duration:  %.2fs\n", m.Duration)
	fmt.Printf("size:      %dx%d px (scale %.1f)\n", m.Geometry.PixelWidth, m.Geometry.PixelHeight, m.Geometry.Scale)
	fmt.Printf("target:    %s\n", m.Target.Kind)
	fmt.Printf("events:    %d\n", len(log))
	for _, k := range []events.Kind{events.KindCursorMove, events.KindMouseDown, events.KindMouseUp, events.KindScroll, events.KindKeyPress} {
		if counts[k] > 0 {
			fmt.Printf("  %-12s %d\n", k, counts[k])
		}
	}
	return nil
}

func cmdCursor(args []string) error {
	fs := flag.NewFlagSet("cursor", flag.ExitOnError)
	at := fs.Float64("t", 0, "playback time in seconds")
	w := fs.Float64("w", 0, "render surface width (default: recording width)")
	h := fs.Float64("h", 0, "render surface height (default: recording height)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: pixelmark cursor [-t sec] [-w px -h px] <bundle>")
	}

	b, err := project.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	log, err := b.Events()
	if err != nil {
		return err
	}

	surfaceW, surfaceH := *w, *h
	if surfaceW <= 0 {
		surfaceW = float64(b.Manifest.Geometry.PixelWidth)
	}
	if surfaceH <= 0 {
		surfaceH = float64(b.Manifest.Geometry.PixelHeight)
	}

	cursor, ok := replay.New(log, b.Manifest.Geometry).At(*at, surfaceW, surfaceH)
	if !ok {
		return fmt.Errorf("no pointer events in this recording")
	}
	fmt.Printf("t=%.3fs  position=(%.1f, %.1f)  holding=%v  clicks=%d\n",
		*at, cursor.X, cursor.Y, cursor.Holding, cursor.ClickSeq)
	return nil
}

func openLibrary() (*project.Library, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("get user config dir: %w", err)
	}
	return project.OpenLibrary(filepath.Join(dir, "pixelmark", "library"))
}

func indexBundle(b *project.Bundle) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	m := b.Manifest
	return lib.Put(types.ProjectInfo{
		ID:        m.ID,
		Name:      m.Name,
		Path:      b.Path,
		CreatedAt: m.CreatedAt,
		Duration:  m.Duration,
		Width:     m.Geometry.PixelWidth,
		Height:    m.Geometry.PixelHeight,
	})
}
