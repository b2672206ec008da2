package eventlog

import "strings"

// Level classifies an event. Callers pass it explicitly, keyword inference
// exists only as a fallback for free-form messages.
type Level string

const (
	LevelInfo      Level = "INFO"
	LevelError     Level = "ERROR"
	LevelDetection Level = "DETECTION"
	LevelSystem    Level = "SYSTEM_EVENT"
	LevelUser      Level = "USER_ACTION"
	LevelRecording Level = "RECORDING_EVENT"
)

// InferLevel guesses a level from message content. It is a convenience for
// free-form notes, never the primary classification path: anything
// safety-relevant must carry an explicit level.
func InferLevel(message string) Level {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "error"):
		return LevelError
	case strings.Contains(m, "detected"):
		return LevelDetection
	case strings.Contains(m, "rec start"), strings.Contains(m, "rec stop"), strings.Contains(m, "finalized"):
		return LevelRecording
	case strings.Contains(m, "initiated"), strings.Contains(m, "selected"), strings.Contains(m, "uploaded"):
		return LevelSystem
	case strings.Contains(m, "stop") && strings.Contains(m, "user"):
		return LevelUser
	default:
		return LevelInfo
	}
}
