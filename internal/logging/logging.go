/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment, level string) zerolog.Logger {
	return SetupWithWriter(environment, level, nil)
}

// SetupWithWriter configures zerolog with an additional writer (e.g., for log buffer).
// The additional writer receives the JSON form of every line.
func SetupWithWriter(environment, level string, additionalWriter io.Writer) zerolog.Logger {
	return build(zerolog.ConsoleWriter{Out: os.Stdout}, environment, level, additionalWriter)
}

func build(console io.Writer, environment, level string, additionalWriter io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	writer := console
	if additionalWriter != nil {
		writer = zerolog.MultiLevelWriter(console, additionalWriter)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(ResolveLevel(environment, level))
	log.Logger = logger
	return logger
}

// ResolveLevel picks the explicit level when it parses, otherwise debug in
// development and info everywhere else.
func ResolveLevel(environment, level string) zerolog.Level {
	if level = strings.TrimSpace(level); level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			return parsed
		}
	}
	if environment == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
