package huffman

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package logger. It is disabled unless LOG_LEVEL is set.
var Logger zerolog.Logger

func init() {
	setupLogger()
}

// setupLogger initializes zerolog based on environment variables
func setupLogger() {
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	var level zerolog.Level
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		// unset or unknown: disable completely
		level = zerolog.Disabled
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	// Pretty field names for debug mode only
	if logLevel == "debug" {
		output.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		output.FormatFieldName = func(i interface{}) string {
			return fmt.Sprintf("%s:", i)
		}
	}

	Logger = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", "huffman").
		Logger()
}

// LogTableBuilt logs the shape of a freshly built table set.
func LogTableBuilt(alphabet string, t *Table) {
	if Logger.GetLevel() == zerolog.Disabled {
		return
	}

	stats := t.Stats()
	Logger.Debug().
		Str("event", "table").
		Str("alphabet", alphabet).
		Int("root_width", t.RootWidth()).
		Ints("geometry", widths(t.geometry)).
		Int("levels", stats.Levels).
		Int("entries", stats.Entries).
		Int("tail_entries", stats.TailEntries).
		Int("max_depth", stats.MaxDepth).
		Int("pairs", stats.Emit2).
		Msg("Huffman table built")
}

// LogDecodeError logs a rejected input with context
func LogDecodeError(err error, context string, fields map[string]interface{}) {
	if Logger.GetLevel() == zerolog.Disabled {
		return
	}

	logEvent := Logger.Debug().
		Err(err).
		Str("context", context)

	for key, value := range fields {
		logEvent = logEvent.Interface(key, value)
	}

	logEvent.Msg("Huffman decode failed")
}

// LogHPACK logs header literal decompression (RFC 7541 Section 5.2)
func LogHPACK(action string, originalSize, compressedSize int) {
	if compressedSize == 0 {
		return
	}
	Logger.Debug().
		Str("event", "hpack").
		Str("action", action).
		Int("original_size", originalSize).
		Int("compressed_size", compressedSize).
		Float64("compression_ratio", float64(compressedSize)/float64(originalSize)).
		Msg("HPACK literal")
}

func widths(g Geometry) []int {
	out := make([]int, len(g))
	for i, w := range g {
		out[i] = int(w)
	}
	return out
}
