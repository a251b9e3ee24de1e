package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, JSON: true, Output: &buf})

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.WithCharacter("c1").LogError(errors.New("boom"), "save failed", "key", "roleforge-storage")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "save failed", line["msg"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "c1", line["character_id"])
	assert.Equal(t, "roleforge-storage", line["key"])
}

func TestGlobalDefaults(t *testing.T) {
	SetGlobal(nil)
	l := Global()
	require.NotNil(t, l)
	assert.Same(t, l, Global())

	custom := Discard()
	SetGlobal(custom)
	assert.Same(t, custom, Global())
}
