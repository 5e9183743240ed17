package logging

import (
    "os"
    "strings"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Levels follow the usual
// zerolog names; anything unrecognized falls back to info.
func Setup(level string) {
    zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
    lvl, err := zerolog.ParseLevel(strings.ToLower(level))
    if err != nil || lvl == zerolog.NoLevel {
        lvl = zerolog.InfoLevel
    }
    log.Logger = zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
