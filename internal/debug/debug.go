package debug

import (
	"fmt"
	"log"
	"path"
	"runtime"
	"time"
)

// DebugHeader logs the start of the calling operation when debugging is enabled
func DebugHeader(enabled bool) {
	if enabled {
		log.Printf("=== DEBUG START: %s ===", caller())
	}
}

// DebugFooter logs the end of the calling operation when debugging is enabled
func DebugFooter(enabled bool) {
	if enabled {
		log.Printf("=== DEBUG END: %s ===", caller())
	}
}

// DebugOutput prints debug output if debugging is enabled
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if enabled {
		timestamp := time.Now().Format("15:04:05.000")
		message := fmt.Sprintf(format, args...)
		log.Printf("[%s] %s", timestamp, message)
	}
}

// DebugProgress reports every n-th processed record
func DebugProgress(enabled bool, label string, done, total, every int) {
	if !enabled || every <= 0 || done%every != 0 {
		return
	}
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	DebugOutput(enabled, "%s: %d/%d (%.1f%%)", label, done, total, pct)
}

// DebugTiming measures and logs execution time if debugging is enabled
func DebugTiming(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	DebugOutput(enabled, "Starting: %s", operation)

	return func() {
		DebugOutput(enabled, "Completed: %s (took %v)", operation, time.Since(start))
	}
}

// caller names the function two frames up, e.g. "codelist.Load"
func caller() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	return path.Base(fn.Name())
}
