package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/interview-evaluator/internal/config"
)

func TestNewLogger_DevAndProd(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(&buf, config.Config{AppEnv: "dev", OTELServiceName: "svc"})
	lg.Debug("hello", "round_id", "r1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "svc", rec["service"])
	assert.Equal(t, "dev", rec["env"])
	assert.Equal(t, "r1", rec["round_id"])

	buf.Reset()
	NewLogger(&buf, config.Config{AppEnv: "prod", OTELServiceName: "svc"}).Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is suppressed outside dev")

	require.NotNil(t, SetupLogger(config.Config{AppEnv: "prod"}))
}

func TestNewLogger_CountsPipelineEvents(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(&buf, config.Config{AppEnv: "prod"}).With("round_id", "r1")

	before := testutil.ToFloat64(PipelineEventsTotal.WithLabelValues("resolution_fallback"))
	lg.Warn("bank-aware feedback failed", slog.String("event", "resolution_fallback"))
	lg.Info("unrelated")
	assert.Equal(t, before+1, testutil.ToFloat64(PipelineEventsTotal.WithLabelValues("resolution_fallback")))
	assert.Contains(t, buf.String(), `"event":"resolution_fallback"`)
}
