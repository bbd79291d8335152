/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{"development", "", zerolog.DebugLevel},
		{"production", "", zerolog.InfoLevel},
		{"production", "TRACE", zerolog.TraceLevel},
		{"development", "warn", zerolog.WarnLevel},
		{"production", "loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			if got := ResolveLevel(tt.env, tt.level); got != tt.want {
				t.Fatalf("ResolveLevel(%q, %q) = %v, want %v", tt.env, tt.level, got, tt.want)
			}
		})
	}
}

func TestBuildCopiesJSONToAdditionalWriter(t *testing.T) {
	var extra bytes.Buffer
	logger := build(io.Discard, "production", "", &extra)

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "fleet").Msg("visible")

	out := extra.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %s", out)
	}
	if !strings.Contains(out, `"component":"fleet"`) || !strings.Contains(out, `"message":"visible"`) {
		t.Fatalf("unexpected JSON output: %s", out)
	}
}
