package project

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// probeDuration reads the container duration in seconds via ffprobe.
func probeDuration(mediaPath string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration: %w", err)
	}
	return d, nil
}

// extractThumbnail grabs one frame from the middle of the recording as a
// preview image.
func extractThumbnail(mediaPath, dest string, duration float64) error {
	seek := duration / 2
	if seek <= 0 {
		seek = 0
	}
	return exec.Command("ffmpeg",
		"-y", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.2f", seek),
		"-i", mediaPath,
		"-frames:v", "1",
		"-vf", "scale=480:-1",
		dest,
	).Run()
}
