//go:build darwin

package recorder

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>

static int inputMonitoringTrusted() {
	return AXIsProcessTrusted() ? 1 : 0;
}
*/
import "C"

// inputMonitoringTrusted reports whether the process may observe global input.
// The system prompts the user on first use; until granted, only events
// targeting this process are delivered.
func inputMonitoringTrusted() bool {
	return C.inputMonitoringTrusted() != 0
}
