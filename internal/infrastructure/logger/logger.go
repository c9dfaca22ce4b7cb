package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config logging konfiguratsiyasi
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // text, json
	Output     string // stdout, file, both
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig standart konfiguratsiya
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		Output:     "stdout",
		Dir:        "logs",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

var (
	loggers   = make(map[string]*logrus.Logger)
	loggersMu sync.Mutex
	config    = DefaultConfig()
	closers   []io.Closer
)

// Init sets the configuration used by loggers created afterwards.
func Init(cfg Config) error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if cfg.Output == "file" || cfg.Output == "both" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return fmt.Errorf("logs papkasini yaratib bo'lmadi: %w", err)
		}
	}
	config = cfg

	// Already created loggers pick up the new settings.
	for name, l := range loggers {
		configure(l, name)
	}
	return nil
}

// GetLogger komponent nomi bo'yicha logger (import, storage, jobs, bot, http)
func GetLogger(name string) *logrus.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := logrus.New()
	configure(l, name)
	loggers[name] = l
	return l
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return GetLogger(name).WithField("component", name)
}

// Close flushes file writers.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}

func configure(l *logrus.Logger, name string) {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				s := strings.Split(f.Function, ".")
				return s[len(s)-1], fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			},
		})
	}

	var writers []io.Writer
	if config.Output == "file" || config.Output == "both" {
		fw := &lumberjack.Logger{
			Filename:   filepath.Join(config.Dir, name+".log"),
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		}
		closers = append(closers, fw)
		writers = append(writers, fw)
	}
	if config.Output != "file" {
		writers = append(writers, os.Stdout)
	}
	l.SetOutput(io.MultiWriter(writers...))
}
