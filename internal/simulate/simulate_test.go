package simulate

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tova-go/internal/engine"
)

func TestScripts(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			script, err := Load(path)
			require.NoError(t, err)

			report, err := Run(script, engine.DefaultConfig(), nil)
			require.NoError(t, err)
			assert.NoError(t, report.Mismatch)
			assert.Equal(t, len(report.Outcome.Trials), report.Shown)
		})
	}
}

func TestFullLengthRandomSession(t *testing.T) {
	script, err := Parse([]byte(`
name: full default run
seed: 7
respond:
  latency_ms: 350
  targets: true
`))
	require.NoError(t, err)

	report, err := Run(script, engine.DefaultConfig(), nil)
	require.NoError(t, err)

	o := report.Outcome
	assert.Len(t, o.Trials, 648)
	assert.Equal(t, engine.ReasonTrialCountReached, o.Reason)
	assert.Equal(t, int64(1298000), o.Result.RealizedDurationMs)
	assert.Zero(t, o.Result.OmissionErrors)
	assert.Zero(t, o.Result.CommissionErrors)
	assert.Equal(t, 350.0, o.Result.MeanReactionTimeMs)
	assert.InDelta(t, 0.22, float64(o.Result.TargetsShown)/648, 0.06)
}

func TestExpectReportsMismatches(t *testing.T) {
	script, err := Parse([]byte(`
test: {trial_count: 2}
pattern: TT
expect:
  omission_errors: 0
  trials: 3
`))
	require.NoError(t, err)

	report, err := Run(script, engine.DefaultConfig(), nil)
	require.NoError(t, err)
	require.Error(t, report.Mismatch)
	assert.Contains(t, report.Mismatch.Error(), "omission_errors: want 0, got 2")
	assert.Contains(t, report.Mismatch.Error(), "trials: want 3, got 2")

	var out strings.Builder
	require.NoError(t, report.Render(&out))
	assert.Contains(t, out.String(), "Omission errors")
	assert.Contains(t, out.String(), "MISMATCH")
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("presses: [1]\nspeed: fast\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("pauses: [{at_ms: 10, for_ms: 0}]\n"))
	assert.Error(t, err)
}

func TestOverridesApply(t *testing.T) {
	lead := 500
	cfg := TestOverrides{ISIMs: 3000, TrialCount: 4}.Apply(engine.DefaultConfig())
	assert.Equal(t, cfg.ISI, cfg.LeadIn, "lead-in follows the interval")
	assert.Equal(t, 4, cfg.TrialCount)

	cfg = TestOverrides{ISIMs: 3000, LeadInMs: &lead}.Apply(engine.DefaultConfig())
	assert.Equal(t, int64(500), cfg.LeadIn.Milliseconds())
}

func TestInvalidPatternFails(t *testing.T) {
	script, err := Parse([]byte("pattern: TXN\n"))
	require.NoError(t, err)
	_, err = Run(script, engine.DefaultConfig(), nil)
	assert.Error(t, err)
}
