package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEstimator(t *testing.T) {
	t.Run("success with defaults", func(t *testing.T) {
		est, err := NewEstimator(DefaultPhases())
		require.NoError(t, err)
		assert.NotNil(t, est)
	})

	t.Run("no phases", func(t *testing.T) {
		est, err := NewEstimator(nil)
		require.ErrorIs(t, err, ErrNoPhases)
		assert.Nil(t, est)
	})

	t.Run("non-ascending thresholds", func(t *testing.T) {
		_, err := NewEstimator([]Phase{
			{Threshold: 40, Label: "a"},
			{Threshold: 40, Label: "b"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not ascending")
	})

	t.Run("threshold above ceiling", func(t *testing.T) {
		_, err := NewEstimator([]Phase{{Threshold: 96, Label: "a"}})
		require.Error(t, err)
	})

	t.Run("empty label", func(t *testing.T) {
		_, err := NewEstimator([]Phase{{Threshold: 20, Label: ""}})
		require.Error(t, err)
	})
}

func TestEstimator_Estimate_Formula(t *testing.T) {
	est := MustNewEstimator(DefaultPhases())
	total := 100 * time.Second

	tests := []struct {
		name     string
		elapsed  time.Duration
		progress int
		message  string
	}{
		{"zero elapsed", 0, 0, "starting"},
		{"negative elapsed clamps to zero", -5 * time.Second, 0, "starting"},
		{"floor of fractional percent", 19500 * time.Millisecond, 19, "starting"},
		{"phase boundary is inclusive of next band", 20 * time.Second, 20, "analyzing"},
		{"mid analyzing", 35 * time.Second, 35, "analyzing"},
		{"detecting band", 55 * time.Second, 55, "detecting"},
		{"generating report band", 70 * time.Second, 70, "generating report"},
		{"finalizing band", 85 * time.Second, 85, "finalizing"},
		{"full elapsed capped at ceiling", total, Ceiling, "finalizing"},
		{"beyond total stays at ceiling", 10 * total, Ceiling, "finalizing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := est.Estimate(tt.elapsed, total)
			assert.Equal(t, tt.progress, snap.Progress)
			assert.Equal(t, tt.message, snap.Message)
		})
	}
}

func TestEstimator_Estimate_MonotoneAndBounded(t *testing.T) {
	est := MustNewEstimator(DefaultPhases())
	total := 25 * time.Second

	last := -1
	for elapsed := time.Duration(0); elapsed <= 2*total; elapsed += 250 * time.Millisecond {
		snap := est.Estimate(elapsed, total)
		require.GreaterOrEqual(t, snap.Progress, 0)
		require.LessOrEqual(t, snap.Progress, Ceiling)
		require.GreaterOrEqual(t, snap.Progress, last, "progress decreased at elapsed=%s", elapsed)
		last = snap.Progress
	}
}

func TestEstimator_Estimate_Deterministic(t *testing.T) {
	est := MustNewEstimator(DefaultPhases())
	first := est.Estimate(13*time.Second, 25*time.Second)
	for range 10 {
		assert.Equal(t, first, est.Estimate(13*time.Second, 25*time.Second))
	}
}

func TestEstimator_Estimate_NonPositiveTotal(t *testing.T) {
	est := MustNewEstimator(DefaultPhases())
	assert.Equal(t, Ceiling, est.Estimate(time.Second, 0).Progress)
	assert.Equal(t, Ceiling, est.Estimate(time.Second, -time.Second).Progress)
}

func TestParsePhases(t *testing.T) {
	t.Run("empty yields defaults", func(t *testing.T) {
		phases, err := ParsePhases("  ")
		require.NoError(t, err)
		assert.Equal(t, DefaultPhases(), phases)
	})

	t.Run("custom list", func(t *testing.T) {
		phases, err := ParsePhases("50:warming up, 95:almost there")
		require.NoError(t, err)
		require.Len(t, phases, 2)
		assert.Equal(t, Phase{Threshold: 50, Label: "warming up"}, phases[0])
		assert.Equal(t, Phase{Threshold: 95, Label: "almost there"}, phases[1])

		est, err := NewEstimator(phases)
		require.NoError(t, err)
		assert.Equal(t, "warming up", est.Label(0))
		assert.Equal(t, "almost there", est.Label(60))
		assert.Equal(t, "almost there", est.Label(Ceiling))
	})

	t.Run("missing separator", func(t *testing.T) {
		_, err := ParsePhases("20starting")
		require.Error(t, err)
	})

	t.Run("bad threshold", func(t *testing.T) {
		_, err := ParsePhases("x:starting")
		require.Error(t, err)
	})

	t.Run("empty label", func(t *testing.T) {
		_, err := ParsePhases("20:")
		require.Error(t, err)
	})
}
