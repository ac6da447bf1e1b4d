package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf})
	t.Cleanup(func() { Init(Config{Level: LevelInfo, Format: FormatText}) })

	Get().Info("hello", "key", "value")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "hello", record["msg"])
	require.Equal(t, "value", record["key"])
}

func TestLogContextFields(t *testing.T) {
	lc := NewLogContext("trace-1").WithProcedure("COMPOUND").WithAuth(1000, 1000)
	args := FromLogContext(lc)

	asMap := map[string]any{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		require.True(t, ok)
		asMap[key] = args[i+1]
	}

	require.Equal(t, "trace-1", asMap[KeyTraceID])
	require.Equal(t, "COMPOUND", asMap[KeyProcedure])
	require.Equal(t, uint32(1000), asMap[KeyUID])
}
