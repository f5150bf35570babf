package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobsCLIRequiresAddress(t *testing.T) {
	_, err := NewJobsCLI("")
	assert.Error(t, err)
}

func TestTriggerWithoutClient(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "stats:warmup")
	assert.Error(t, err)
}

func TestTriggerUnknownTask(t *testing.T) {
	c, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Trigger(context.Background(), "gl:integrity")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stats:warmup")
}

func TestQueueStatsWriteTo(t *testing.T) {
	var buf bytes.Buffer
	_, err := QueueStats{Queue: "default", Pending: 2, Failed: 1}.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "queue=default pending=2 active=0 scheduled=0 retry=0 failed_today=1\n", buf.String())
}
