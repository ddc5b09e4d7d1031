package emit

import (
	"bytes"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datataps/roomtap/pkg/models"
)

func emittedLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		out = append(out, msg)
	}
	return out
}

func TestSchemaMessage(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterEmitter(&buf)

	require.NoError(t, e.Schema("reservations", []string{"id"}, []string{"date"}))
	require.NoError(t, e.Flush())

	msgs := emittedLines(t, &buf)
	require.Len(t, msgs, 1)
	assert.Equal(t, "SCHEMA", msgs[0]["type"])
	assert.Equal(t, "reservations", msgs[0]["stream"])
	assert.Equal(t, []interface{}{"id"}, msgs[0]["key_properties"])
	assert.Equal(t, []interface{}{"date"}, msgs[0]["replication_keys"])
}

func TestSchemaMessageOmitsEmptyReplicationKeys(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterEmitter(&buf)

	require.NoError(t, e.Schema("venues", []string{"id"}, nil))
	require.NoError(t, e.Flush())

	msgs := emittedLines(t, &buf)
	require.Len(t, msgs, 1)
	assert.NotContains(t, msgs[0], "replication_keys")
}

func TestRecordMessage(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterEmitter(&buf)

	rec := models.Record{"id": "r1", "date": "2024-01-05 00:00"}
	require.NoError(t, e.Record("reservations", rec))
	require.NoError(t, e.Flush())

	msgs := emittedLines(t, &buf)
	require.Len(t, msgs, 1)
	assert.Equal(t, "RECORD", msgs[0]["type"])
	assert.Equal(t, "reservations", msgs[0]["stream"])

	record, ok := msgs[0]["record"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "r1", record["id"])
}

func TestStateMessageFlushesImmediately(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterEmitter(&buf)

	value := map[string]interface{}{"bookmarks": map[string]string{"reservations": "2024-01-05"}}
	require.NoError(t, e.State(value))

	// no explicit Flush: the state write must already be visible
	msgs := emittedLines(t, &buf)
	require.Len(t, msgs, 1)
	assert.Equal(t, "STATE", msgs[0]["type"])
}

func TestMessagesAreOneLineEach(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterEmitter(&buf)

	require.NoError(t, e.Schema("venues", []string{"id"}, nil))
	require.NoError(t, e.Record("venues", models.Record{"id": "v1"}))
	require.NoError(t, e.State(map[string]string{}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
}
