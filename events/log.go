package events

import (
	"encoding/json"
	"fmt"
)

// Log is the ordered sequence of events produced by one recording session.
// Insertion order is temporal order; the producer guarantees non-decreasing
// timestamps.
type Log []Event

// Validate checks the monotonic-timestamp invariant. Useful after decoding a
// log from disk, where the producer guarantee no longer holds by construction.
func (l Log) Validate() error {
	var prev float64
	for i, e := range l {
		if e.Timestamp < 0 {
			return fmt.Errorf("event %d: negative timestamp %v", i, e.Timestamp)
		}
		if e.Timestamp < prev {
			return fmt.Errorf("event %d: timestamp %v before predecessor %v", i, e.Timestamp, prev)
		}
		prev = e.Timestamp
	}
	return nil
}

// Encode serializes the log as a JSON array.
func (l Log) Encode() ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// Decode parses a JSON-encoded log and validates its ordering.
func Decode(data []byte) (Log, error) {
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode event log: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("decode event log: %w", err)
	}
	return l, nil
}
