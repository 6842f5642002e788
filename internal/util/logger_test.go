package util

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lvl  LogLevel
		want zerolog.Level
	}{
		{TraceLevel, zerolog.TraceLevel},
		{DebugLevel, zerolog.DebugLevel},
		{InfoLevel, zerolog.InfoLevel},
		{WarnLevel, zerolog.WarnLevel},
		{ErrorLevel, zerolog.ErrorLevel},
		{42, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZerologLevel(tt.lvl), "level %d", tt.lvl)
	}
}

func TestNewLogLogger_RoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	prevLvl := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLvl)
	})
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	l := NewLogLogger("FuseServer", WarnLevel)
	l.Println("2024/01/01 12:00:00 server: mount ready")

	out := buf.String()
	assert.Contains(t, out, `"component":"FuseServer"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"message":"mount ready"`)
}

func TestPointer(t *testing.T) {
	t.Parallel()

	p := Pointer(7)
	assert.Equal(t, 7, *p)
}
