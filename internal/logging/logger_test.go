package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestAC900_Init_WritesJSONWhenRequested(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	l := Logger()
	l.Info().Str("feed", "abc").Msg("feed generated")

	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), `"feed":"abc"`)
	assert.Contains(t, buf.String(), "feed generated")
}

func TestAC900_Init_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Debug().Msg("hidden")
	l := Logger()
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestAC901_Component_AddsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	l := Component("loader")
	l.Info().Msg("x")

	assert.Contains(t, buf.String(), `"component":"loader"`)
}

func TestAC902_ParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestAC903_FromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg := FromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}

func TestAC904_SetLogger_ReplacesGlobalLogger(t *testing.T) {
	Init(Config{Level: "debug"})
	t.Cleanup(func() { Init(Config{}) })

	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	Debug().Str("config", "feed-config.json").Msg("starting")
	l := Component("cli")
	l.Info().Msg("ready")

	assert.Contains(t, buf.String(), `"config":"feed-config.json"`)
	assert.Contains(t, buf.String(), `"component":"cli"`)
}
