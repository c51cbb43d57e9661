// Package types provides shared type definitions for the application.
package types

import "time"

// SessionStatus describes the recording service state for status consumers.
type SessionStatus struct {
	Recording bool    `json:"recording"`
	Paused    bool    `json:"paused"`
	Target    string  `json:"target,omitempty"` // "display" or "window"
	Width     int     `json:"width,omitempty"`  // captured pixels
	Height    int     `json:"height,omitempty"`
	Elapsed   float64 `json:"elapsed,omitempty"` // seconds
}

// ProjectInfo is the library index entry for one saved recording bundle.
type ProjectInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"` // bundle directory
	CreatedAt time.Time `json:"created_at"`
	Duration  float64   `json:"duration"` // seconds
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}
