package core

// DebugWriter receives diagnostic lines from the core. The default is a
// no-op; a target or test can redirect output to UART, USB or a log.
type DebugWriter func(string)

var (
	debugPrintln DebugWriter = func(string) {}
	debugEnabled bool
)

// SetDebugWriter installs the platform debug sink.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled switches debug output. Off by default; the tick paths
// must stay deterministic, so nothing in them prints.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes one diagnostic line through the installed sink.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}
