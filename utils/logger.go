package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

// InitLogger builds the process logger. Unknown levels fall back to info.
func InitLogger(level string) *Logger {
	logger := logrus.New()

	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return &Logger{logger}
}

// NewDiscardLogger is used by tests and tools that want no output.
func NewDiscardLogger() *Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Logger{logger}
}
