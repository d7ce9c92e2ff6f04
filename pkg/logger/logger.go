package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Leveled logger shared by the site services.
// - package-level helpers (Debugf/Infof/Warnf/Errorf/Fatalf) backed by logrus
// - Init(level) and Configure(opts) are called once during startup

var logger = newLogger(os.Stdout)

// Options selects the formatter and an optional rotating log file.
type Options struct {
	Format     string // text | json
	File       string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	return l
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(l)))
	if err != nil || lvl > logrus.DebugLevel {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
}

// Configure applies formatter and output settings.
func Configure(o Options) {
	if strings.EqualFold(o.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	if o.File == "" {
		return
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   o.File,
		MaxSize:    orDefault(o.MaxSizeMB, 100),
		MaxBackups: orDefault(o.MaxBackups, 7),
		MaxAge:     orDefault(o.MaxAgeDays, 7),
		Compress:   true,
	}))
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

// SetOutput redirects log output (tests capture into a buffer).
func SetOutput(w io.Writer) { logger.SetOutput(w) }

func Debugf(format string, v ...interface{}) { logger.Debugf(format, v...) }
func Infof(format string, v ...interface{})  { logger.Infof(format, v...) }
func Warnf(format string, v ...interface{})  { logger.Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { logger.Errorf(format, v...) }
func Fatalf(format string, v ...interface{}) { logger.Fatalf(format, v...) }

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) { logger.Infoln(v...) }

func Debug(v string) { logger.Debug(v) }
func Info(v string)  { logger.Info(v) }
func Warn(v string)  { logger.Warn(v) }
func Error(v string) { logger.Error(v) }

// WithFields returns a structured entry for component-scoped logging.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return logger.WithFields(logrus.Fields(fields))
}

// LevelString returns the current level as text.
func LevelString() string {
	switch logger.GetLevel() {
	case logrus.DebugLevel:
		return "debug"
	case logrus.WarnLevel:
		return "warn"
	case logrus.ErrorLevel:
		return "error"
	case logrus.FatalLevel, logrus.PanicLevel:
		return "fatal"
	}
	return "info"
}
