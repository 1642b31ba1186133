package tracing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestID(t *testing.T) {
	first := GenerateRequestID()
	second := GenerateRequestID()

	assert.True(t, strings.HasPrefix(first, "req_"))
	assert.NotEqual(t, first, second)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	start := time.Now()

	ctx = WithRequestID(ctx, "req_abc")
	ctx = WithTraceID(ctx, "trace_1")
	ctx = WithSpanID(ctx, "span_1")
	ctx = WithStartTime(ctx, start)

	assert.Equal(t, "req_abc", GetRequestID(ctx))
	assert.Equal(t, "trace_1", GetTraceID(ctx))
	assert.Equal(t, "span_1", GetSpanID(ctx))
	assert.Equal(t, start, GetStartTime(ctx))

	info := GetRequestInfo(ctx)
	assert.Equal(t, "req_abc", info.RequestID)
	assert.Equal(t, "trace_1", info.TraceID)
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.True(t, GetStartTime(ctx).IsZero())
	assert.Equal(t, time.Duration(0), Duration(ctx))
}

func TestDuration(t *testing.T) {
	ctx := WithStartTime(context.Background(), time.Now().Add(-50*time.Millisecond))

	d := Duration(ctx)
	assert.GreaterOrEqual(t, d, 50*time.Millisecond)
}
