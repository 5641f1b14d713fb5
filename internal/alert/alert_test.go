package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingSink_CaptureError(t *testing.T) {
	sink := &RecordingSink{}

	err := sink.CaptureError(context.Background(), LevelCritical, "broker", "order rejected", map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)

	require.Equal(t, 1, sink.Len())
	assert.Equal(t, LevelCritical, sink.Events[0].Level)
	assert.Equal(t, "broker", sink.Events[0].Source)
	assert.Equal(t, "order rejected", sink.Events[0].Message)
	assert.NotEmpty(t, sink.Events[0].ID)
}

func TestThrottler_SuppressesRepeat(t *testing.T) {
	th := newThrottler(time.Hour)

	assert.True(t, th.allow("x"))
	assert.False(t, th.allow("x"))
	assert.True(t, th.allow("y"))
}

func TestNoopSink_NeverErrors(t *testing.T) {
	var sink Sink = NoopSink{}
	require.NoError(t, sink.CaptureError(context.Background(), LevelInfo, "s", "m", nil))
}
