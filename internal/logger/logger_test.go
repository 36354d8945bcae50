package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("production", &buf)
	log.Info("booking accepted", "booking_id", "b-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "booking accepted", line["msg"])
	assert.Equal(t, "b-1", line["booking_id"])
}

func TestNewLocalSkipsNothing(t *testing.T) {
	var buf bytes.Buffer
	New("local", &buf).Debug("debug line")
	assert.Contains(t, buf.String(), "debug line")
}

func TestWithCtx(t *testing.T) {
	var buf bytes.Buffer
	scoped := New("local", &buf).With("request_id", "abc")

	ctx := Inject(context.Background(), scoped)
	WithCtx(ctx).Info("hello")

	assert.Contains(t, buf.String(), "request_id=abc")
	assert.Same(t, L, WithCtx(context.Background()))
}
