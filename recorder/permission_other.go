//go:build !darwin

package recorder

// Non-darwin platforms gate input monitoring elsewhere (X11 grants it to any
// client of the display).
func inputMonitoringTrusted() bool {
	return true
}
