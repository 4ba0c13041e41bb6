package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup. Zero values fall back to profile defaults.
type Config struct {
	Level     string `env:"IOGATE_LOG_LEVEL"`
	Format    string `env:"IOGATE_LOG_FORMAT"`
	Timestamp *bool  `env:"IOGATE_LOG_TIMESTAMP"`
	NoColor   *bool  `env:"IOGATE_LOG_NOCOLOR"`
	File      string `env:"IOGATE_LOG_FILE"`
	Rotation  Rotation
}

// Rotation controls file rotation when File is set.
type Rotation struct {
	MaxSizeMB  int  `env:"IOGATE_LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int  `env:"IOGATE_LOG_MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int  `env:"IOGATE_LOG_MAX_AGE_DAYS" envDefault:"28"`
	Compress   bool `env:"IOGATE_LOG_COMPRESS" envDefault:"true"`
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := Config{}
		if err := env.Parse(&cfg); err != nil {
			// fall through with profile defaults; the logger is not up yet
			cfg = Config{}
		}
		log.Logger = New(profile, cfg, os.Stdout)
		zerolog.SetGlobalLevel(resolveLevel(profile, cfg.Level))
	})
}

// New builds a logger for profile with cfg overrides, writing to out and,
// when cfg.File is set, to a rotated log file.
func New(profile Profile, cfg Config, out io.Writer) zerolog.Logger {
	timestamp := profile == ProfileRuntime
	if cfg.Timestamp != nil {
		timestamp = *cfg.Timestamp
	}
	noColor := false
	if cfg.NoColor != nil {
		noColor = *cfg.NoColor
	}

	var console io.Writer
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		console = out
	} else {
		console = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    noColor,
			TimeFormat: time.RFC3339,
			PartsExclude: func() []string {
				if timestamp {
					return nil
				}
				return []string{zerolog.TimestampFieldName}
			}(),
		}
	}

	writer := console
	if file := strings.TrimSpace(cfg.File); file != "" {
		writer = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    max(cfg.Rotation.MaxSizeMB, 10),
			MaxBackups: max(cfg.Rotation.MaxBackups, 1),
			MaxAge:     max(cfg.Rotation.MaxAgeDays, 7),
			Compress:   cfg.Rotation.Compress,
		})
	}

	ctx := zerolog.New(writer).Level(resolveLevel(profile, cfg.Level)).With()
	if timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Str("app", "iogate").Logger()
}

func resolveLevel(profile Profile, raw string) zerolog.Level {
	if lvl, ok := parseLevel(raw); ok {
		return lvl
	}
	if profile == ProfileTest {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
