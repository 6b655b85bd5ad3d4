package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReturnsUsableLoggerAndFlush(t *testing.T) {
	log, flush := New(false, "gateway")
	require.NotNil(t, log)
	log.Info("test message", "k", "v")
	// zap's Sync on stderr can return a benign ENOTTY-style error under a
	// test runner; only the construction and logging call are asserted.
	_ = flush()
}

func TestNewProductionModeAlsoConstructs(t *testing.T) {
	log, flush := New(true, "sequencer")
	require.NotNil(t, log)
	log.Info("test message")
	_ = flush()
}
