// Package emit is the outbound record boundary: Singer-style SCHEMA, RECORD
// and STATE messages written as JSON lines.
package emit

import (
	"bufio"
	"io"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/datataps/roomtap/pkg/errors"
	"github.com/datataps/roomtap/pkg/models"
)

// Emitter receives extracted records and checkpoint updates
type Emitter interface {
	// Schema announces a stream before its first record
	Schema(stream string, keyProperties, replicationKeys []string) error
	// Record emits one extracted record for a stream
	Record(stream string, rec models.Record) error
	// State emits the checkpoint state after each mutation
	State(value interface{}) error
}

type schemaMessage struct {
	Type            string   `json:"type"`
	Stream          string   `json:"stream"`
	KeyProperties   []string `json:"key_properties"`
	ReplicationKeys []string `json:"replication_keys,omitempty"`
}

type recordMessage struct {
	Type   string        `json:"type"`
	Stream string        `json:"stream"`
	Record models.Record `json:"record"`
}

type stateMessage struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// WriterEmitter writes JSON-line messages to an io.Writer, typically stdout
type WriterEmitter struct {
	w  *bufio.Writer
	mu sync.Mutex
}

// NewWriterEmitter creates a buffered JSON-lines emitter
func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{w: bufio.NewWriterSize(w, 64*1024)}
}

// Schema implements Emitter
func (e *WriterEmitter) Schema(stream string, keyProperties, replicationKeys []string) error {
	return e.write(schemaMessage{
		Type:            "SCHEMA",
		Stream:          stream,
		KeyProperties:   keyProperties,
		ReplicationKeys: replicationKeys,
	})
}

// Record implements Emitter
func (e *WriterEmitter) Record(stream string, rec models.Record) error {
	return e.write(recordMessage{
		Type:   "RECORD",
		Stream: stream,
		Record: rec,
	})
}

// State implements Emitter. The state line is flushed through immediately so
// downstream consumers observe checkpoints in order with the records they
// cover.
func (e *WriterEmitter) State(value interface{}) error {
	if err := e.write(stateMessage{Type: "STATE", Value: value}); err != nil {
		return err
	}
	return e.Flush()
}

// Flush drains the write buffer
func (e *WriterEmitter) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.Flush()
}

func (e *WriterEmitter) write(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to marshal message")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write message")
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write message")
	}
	return nil
}
