package cnll

import (
	"io"
	"log/slog"
)

// NewLogger returns a text logger writing to w, and the level variable
// controlling it. The crossing finder raises the level for the duration of
// a search when Quiet is set.
func NewLogger(w io.Writer, level slog.Level) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(level)

	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     lv,
	})

	return slog.New(h), lv
}

// quietScope raises lv to Error when quiet is true and returns the func
// restoring the previous level. A nil lv is a no-op.
func quietScope(lv *slog.LevelVar, quiet bool) func() {
	if lv == nil || !quiet {
		return func() {}
	}

	prev := lv.Level()
	lv.Set(slog.LevelError)

	return func() { lv.Set(prev) }
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}

	return l
}
