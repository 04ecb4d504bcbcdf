package workflowtest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportable/reportgen/internal/core"
)

// TestScriptedRunner tests the canned analyzer used by workflow tests.
func TestScriptedRunner(t *testing.T) {
	req := core.AnalysisRequest{ReportID: "report-1", Target: "shop.example.com"}

	t.Run("emits milestones then returns configured content", func(t *testing.T) {
		runner := &ScriptedRunner{
			Content: json.RawMessage(`{"findings":[{"kind":"skimmer"}]}`),
			Emits: []json.RawMessage{
				json.RawMessage(`{"phase":"fetch"}`),
				json.RawMessage(`{"phase":"analyze"}`),
			},
		}

		var emitted []string
		content, err := runner.Run(context.Background(), req, func(payload json.RawMessage) {
			emitted = append(emitted, string(payload))
		})

		require.NoError(t, err)
		assert.JSONEq(t, `{"findings":[{"kind":"skimmer"}]}`, string(content))
		assert.Equal(t, []string{`{"phase":"fetch"}`, `{"phase":"analyze"}`}, emitted)
	})

	t.Run("falls back to default content", func(t *testing.T) {
		runner := &ScriptedRunner{}

		content, err := runner.Run(context.Background(), req, nil)

		require.NoError(t, err)
		assert.Contains(t, string(content), "shop.example.com")
	})

	t.Run("configured error fails the run", func(t *testing.T) {
		scripted := errors.New("analyzer crashed")
		runner := &ScriptedRunner{Err: scripted}

		content, err := runner.Run(context.Background(), req, nil)

		assert.ErrorIs(t, err, scripted)
		assert.Nil(t, content)
	})

	t.Run("cancelled context stops emission", func(t *testing.T) {
		runner := &ScriptedRunner{
			Emits: []json.RawMessage{json.RawMessage(`{"phase":"fetch"}`)},
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := runner.Run(ctx, req, func(json.RawMessage) {
			t.Fatal("emit should not run after cancellation")
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

// TestDefaultAnalysisContent tests the canned content builder.
func TestDefaultAnalysisContent(t *testing.T) {
	content := DefaultAnalysisContent("checkout.example.com")

	var decoded struct {
		Target   string   `json:"target"`
		Findings []string `json:"findings"`
		Source   string   `json:"source"`
	}
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.Equal(t, "checkout.example.com", decoded.Target)
	assert.NotNil(t, decoded.Findings)
	assert.Equal(t, "workflowtest", decoded.Source)
}

// TestUniqueTarget tests the target generator used for test isolation.
func TestUniqueTarget(t *testing.T) {
	first := UniqueTarget("order")
	second := UniqueTarget("order")

	assert.NotEqual(t, first, second)
	assert.Contains(t, first, "order-")
	assert.Contains(t, first, ".example.com")

	// Empty prefix falls back to a usable default
	assert.Contains(t, UniqueTarget(""), "wf-")
}

// TestSimpleReportRequest tests the request builder.
func TestSimpleReportRequest(t *testing.T) {
	req := SimpleReportRequest("shop.example.com", 45)

	assert.Equal(t, "shop.example.com", req.Target)
	assert.Equal(t, 45, req.EstimatedSeconds)
	require.NoError(t, req.Validate())

	// Zero estimate defers to the server-side default and still validates
	require.NoError(t, SimpleReportRequest("shop.example.com", 0).Validate())
}

// TestWorkflowTestOptions tests the option builders.
func TestWorkflowTestOptions(t *testing.T) {
	// Test default options
	opts := DefaultWorkflowOptions()
	assert.False(t, opts.EnableRedis)
	assert.Equal(t, 30*time.Second, opts.DefaultEstimate)
	assert.Equal(t, 2*time.Minute, opts.MaxGeneration)

	// Test Redis options
	redisOpts := RedisWorkflowOptions()
	assert.True(t, redisOpts.EnableRedis)
	assert.Equal(t, 30*time.Second, redisOpts.DefaultEstimate)
	assert.Equal(t, 2*time.Minute, redisOpts.MaxGeneration)
}
