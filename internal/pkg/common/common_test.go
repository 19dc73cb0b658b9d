package common

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, mode string) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prevLogger, prevMode := Logger, LogMode
	SetLogger(zap.New(core))
	LogMode = mode
	t.Cleanup(func() {
		Logger, LogMode = prevLogger, prevMode
	})
	return logs
}

func TestSensitiveFieldsAreDropped(t *testing.T) {
	logs := observe(t, "")

	LogWarn("remote call", zap.String("api_key", "sk-123"), zap.String("prompt_body", "..."), zap.String("model", "m1"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, map[string]interface{}{"model": "m1"}, fields)
}

func TestConciseModeKeepsListedMessages(t *testing.T) {
	logs := observe(t, "concise")

	LogInfo("slot filled")
	LogInfo("Plan job finished", zap.String("status", "done"))
	LogError("boom")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "Plan job finished", logs.All()[0].Message)
	assert.Equal(t, "boom", logs.All()[1].Message)
}

func TestSetLoggerNil(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	SetLogger(nil)
	require.NotNil(t, Logger)
	LogInfo("dropped")
}

func TestInitLoggerWritesConsoleAndFile(t *testing.T) {
	prevLogger, prevMode := Logger, LogMode
	t.Cleanup(func() { Logger, LogMode = prevLogger, prevMode })

	var console bytes.Buffer
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, InitLogger(LogOptions{Level: "warn", Dir: dir, Console: &console}))

	LogInfo("below level")
	LogWarn("pool thin", zap.String("meal_type", "snack"))
	Sync()

	assert.NotContains(t, console.String(), "below level")
	assert.Contains(t, console.String(), "pool thin")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"pool thin"`)
	assert.Contains(t, string(data), `"level":"WARN"`)
	assert.Contains(t, string(data), `"service":"meal-plan-generator"`)
}

func TestCustomErrorMatchesByCode(t *testing.T) {
	err := fmt.Errorf("fill 2026-03-02 lunch: %w", ErrPoolExhausted.Wrap(io.EOF))

	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, errors.Is(err, ErrJobNotFound))
	assert.Contains(t, err.Error(), "nothing available for this slot: EOF")

	ce, ok := AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, ce.Status)

	msg := ErrInvalidRequest.WithMessage("day_key is required")
	assert.ErrorIs(t, msg, ErrInvalidRequest)
	assert.Equal(t, "day_key is required", msg.Error())

	_, ok = AsCustomError(io.EOF)
	assert.False(t, ok)
}

func TestParseLooseObject(t *testing.T) {
	obj, err := ParseLooseObject(`{title: 'Oat porridge', tags: ['quick',],}`)
	require.NoError(t, err)
	assert.Equal(t, "Oat porridge", obj["title"])
	assert.Equal(t, []interface{}{"quick"}, obj["tags"])

	_, err = ParseLooseObject(`[1, 2]`)
	assert.Error(t, err)
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	var v map[string]interface{}
	assert.NoError(t, ParseJSON(`{"a": 1}`, &v))
	assert.Error(t, ParseJSON(`{"a": 1} {"b": 2}`, &v))
}

func TestBalancedObjectEnd(t *testing.T) {
	s := `x {"a": "}"} tail`
	end, ok := BalancedObjectEnd(s, 2)
	require.True(t, ok)
	assert.Equal(t, `{"a": "}"}`, s[2:end])

	_, ok = BalancedObjectEnd(`{"a": 1`, 0)
	assert.False(t, ok)
	_, ok = BalancedObjectEnd(s, 0)
	assert.False(t, ok)
}

func TestRepairTruncatedObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{"open string and array", `{"title": "Soup", "steps": ["a", "b`, `{"title": "Soup", "steps": ["a", "b"]}`, true},
		{"dangling comma", `{"a": 1,`, `{"a": 1}`, true},
		{"already complete", `{"a": 1}`, `{"a": 1}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := RepairTruncatedObject(tt.in)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.want, got)
		})
	}

	_, changed := RepairTruncatedObject(`not json`)
	assert.False(t, changed)
}

func TestDayKeys(t *testing.T) {
	keys, err := RollingDayKeys("2026-02-27", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-27", "2026-02-28", "2026-03-01"}, keys)

	_, err = RollingDayKeys("27/02/2026", 3)
	assert.Error(t, err)
}

func TestStringHelpers(t *testing.T) {
	assert.Equal(t, "湯麵", TruncateRunes("湯麵好吃", 2))
	assert.Equal(t, "abc", TruncateRunes("abc", 5))
	assert.Equal(t, "chicken noodle soup", NormalizeSpace("  chicken \t noodle\nsoup "))
}
