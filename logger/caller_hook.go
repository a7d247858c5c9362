package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// skipPrefixes lists packages whose frames never count as the call site.
var skipPrefixes = []string{"github.com/sirupsen/logrus", "brokerboard/logger."}

// callerHook rewrites entry.Caller to the first frame outside logrus and
// this package, so the wrapper types do not show up as the caller.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isWrapperFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isWrapperFrame(fn string) bool {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(fn, prefix) {
			return true
		}
	}
	return false
}
