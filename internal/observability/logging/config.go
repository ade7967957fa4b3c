package logging

import "fmt"

// Config logger options, bound to the global --log-* flags
type Config struct {
	Format string
	Level  string
	Output string
}

// Formats
const (
	FormatPretty = "pretty"
	FormatJSONL  = "jsonl"
)

func DefaultConfig() Config {
	return Config{
		Format: FormatPretty,
		Level:  LevelInfo,
		Output: "stderr",
	}
}

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Validate format and level
func (c Config) Validate() error {
	switch c.Format {
	case "", FormatPretty, FormatJSONL:
	default:
		return fmt.Errorf("log format must be %s or %s, got %q", FormatPretty, FormatJSONL, c.Format)
	}
	switch c.Level {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("log level must be debug, info, warn or error, got %q", c.Level)
	}
	return nil
}

func levelPriority(level string) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}
