package trafficlight

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/KarpelesLab/ringbuf"
)

const logBufferSize = 1024 * 1024

var logLevel = new(slog.LevelVar)
var logger *slog.Logger
var logbuf *ringbuf.Writer

func init() {
	var out io.Writer = os.Stderr
	var err error
	if logbuf, err = ringbuf.New(logBufferSize); err == nil {
		out = io.MultiWriter(os.Stderr, logbuf)
	}
	opts := slog.HandlerOptions{
		Level: logLevel,
	}
	logger = slog.New(slog.NewJSONHandler(out, &opts))
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("failed to setup log buffer", "error", err)
	}
}

func SetDebug(debug bool) {
	if debug {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
}

// dumpLog copies the buffered recent log output to w.
func dumpLog(w io.Writer) (int64, error) {
	if logbuf == nil {
		return 0, nil
	}
	r := logbuf.Reader()
	defer r.Close()
	return io.Copy(w, r)
}

type lightKeyType string

const lightKey lightKeyType = "light"

func newLoggerFromContext(ctx context.Context) *slog.Logger {
	if id, ok := ctx.Value(lightKey).(string); ok {
		return logger.With("light", id)
	}
	return logger
}
