package api

import "atui/config"

// debugf writes to the shared debug log when one is configured.
func debugf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[API] "+format, args...)
	}
}
