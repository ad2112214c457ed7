package datastore

import (
	"fmt"
	"log/slog"
)

// slogWriter adapts a slog.Logger to the GORM logger's Printf-style writer.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.logger.Info(fmt.Sprintf(format, args...))
}
