package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).Info("hello", "k", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.EqualValues(t, 1, line["k"])
}

func TestNewWithWriter_DevelopmentIsTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("development", &buf).Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
}

func TestContextRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
	assert.Equal(t, context.Background(), ContextWithLogger(context.Background(), nil))
}

func TestResolve(t *testing.T) {
	var ctxBuf, fallbackBuf bytes.Buffer
	ctxLogger := slog.New(slog.NewTextHandler(&ctxBuf, nil))
	fallback := slog.New(slog.NewTextHandler(&fallbackBuf, nil))

	Resolve(ContextWithLogger(context.Background(), ctxLogger), fallback, "op", "x").Info("a")
	assert.Contains(t, ctxBuf.String(), "op=x")
	assert.Empty(t, fallbackBuf.String())

	Resolve(context.Background(), fallback).Info("b")
	assert.Contains(t, fallbackBuf.String(), "msg=b")

	assert.NotNil(t, Resolve(context.Background(), nil))
}
