package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/errors"
	"github.com/echoguard/echoguard-go/internal/hydroaudio"
)

// stubScorer returns canned scores regardless of input and records the
// vector length it was called with.
type stubScorer struct {
	scores     []float32
	lastLength int
}

func (s *stubScorer) Score(vector []float32) ([]float32, error) {
	s.lastLength = len(vector)
	return s.scores, nil
}

func testVector(size int) hydroaudio.FeatureVector {
	v := make(hydroaudio.FeatureVector, size)
	for i := range v {
		v[i] = float32(i%7) * 0.1
	}
	return v
}

func TestPredict_SelectsMaxProbabilityLabel(t *testing.T) {
	t.Parallel()

	scorer := &stubScorer{scores: []float32{0.1, 3.0, 0.2, 0.1, 0.4}}
	c := NewWithScorer(scorer, nil)

	result, err := c.Predict(testVector(hydroaudio.FeatureVectorSize))
	require.NoError(t, err)

	assert.Equal(t, LabelVessel, result.EventType)
	assert.True(t, result.IsThreat)
	assert.InDelta(t, result.Probabilities[LabelVessel], result.Confidence, 1e-12)

	var total float64
	for _, p := range result.Probabilities {
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-9, "probabilities must sum to 1")
	assert.Len(t, result.Probabilities, NumLabels())
}

func TestPredict_TieBreaksOnLowestLabelIndex(t *testing.T) {
	t.Parallel()

	// marine_life (index 0) and seismic (index 3) share the maximum score.
	scorer := &stubScorer{scores: []float32{2.0, 0.0, 0.0, 2.0, 0.0}}
	c := NewWithScorer(scorer, nil)

	for range 10 {
		result, err := c.Predict(testVector(hydroaudio.FeatureVectorSize))
		require.NoError(t, err)
		assert.Equal(t, LabelMarineLife, result.EventType)
	}
}

func TestPredict_RenormalizesMalformedLength(t *testing.T) {
	t.Parallel()

	scorer := &stubScorer{scores: []float32{0, 0, 0, 0, 1}}
	c := NewWithScorer(scorer, nil)

	// Short vector is zero-padded, long vector truncated; either way the
	// scorer sees exactly the fixed input length and Predict succeeds.
	for _, size := range []int{0, 100, hydroaudio.FeatureVectorSize, hydroaudio.FeatureVectorSize * 2} {
		_, err := c.Predict(testVector(size))
		require.NoError(t, err, "vector length %d", size)
		assert.Equal(t, hydroaudio.FeatureVectorSize, scorer.lastLength)
	}
}

func TestPredict_NoBackendIsModelUnavailable(t *testing.T) {
	t.Parallel()

	c := NewWithScorer(nil, nil)

	_, err := c.Predict(testVector(hydroaudio.FeatureVectorSize))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelUnavailable))
}

func TestNew_MissingModelFileIsModelUnavailable(t *testing.T) {
	t.Parallel()

	_, err := New(&conf.ModelSettings{Path: "/does/not/exist.tflite"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelUnavailable))
}

func TestNew_SandboxModeSkipsModelFile(t *testing.T) {
	t.Parallel()

	c, err := New(&conf.ModelSettings{Sandbox: true}, nil)
	require.NoError(t, err)

	result, err := c.Predict(testVector(hydroaudio.FeatureVectorSize))
	require.NoError(t, err)
	assert.Equal(t, LabelAmbient, result.EventType)
	assert.False(t, result.IsThreat)
}

func TestThreatPolicy_Totality(t *testing.T) {
	t.Parallel()

	policy := DefaultThreatPolicy()
	want := map[string]bool{
		LabelMarineLife:   false,
		LabelVessel:       true,
		LabelBlastFishing: true,
		LabelSeismic:      true,
		LabelAmbient:      false,
	}

	require.Len(t, want, NumLabels())
	for _, label := range Labels() {
		expected, ok := want[label]
		require.True(t, ok, "label %q missing from expectation", label)
		assert.Equal(t, expected, policy.IsThreat(label), "label %q", label)
	}
}

func TestThreatPolicy_Reconfigurable(t *testing.T) {
	t.Parallel()

	policy := NewThreatPolicy([]string{LabelMarineLife})
	assert.True(t, policy.IsThreat(LabelMarineLife))
	assert.False(t, policy.IsThreat(LabelVessel))
}

func TestLabels_CanonicalOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		LabelMarineLife,
		LabelVessel,
		LabelBlastFishing,
		LabelSeismic,
		LabelAmbient,
	}, Labels())
}
