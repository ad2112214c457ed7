package classifier

import (
	"log/slog"
	"math"
	"sync"

	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/errors"
	"github.com/echoguard/echoguard-go/internal/hydroaudio"
	"github.com/echoguard/echoguard-go/internal/logging"
)

// Result is the immutable outcome of classifying one feature vector.
type Result struct {
	EventType     string             `json:"event_type"`
	Confidence    float64            `json:"confidence"`
	IsThreat      bool               `json:"is_threat"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Classifier scores feature vectors against the fixed label set. Weights
// are fixed after load; Predict is stateless with respect to calls.
type Classifier struct {
	scorer Scorer
	policy *ThreatPolicy
	logger *slog.Logger

	// Serializes access to the scoring backend, interpreter invocations
	// are not safe for concurrent use.
	mu sync.Mutex
}

// New creates a Classifier from the configured model settings. With sandbox
// mode off, a missing model file is a model-unavailable error; sandbox mode
// installs a deterministic stub backend instead.
func New(settings *conf.ModelSettings, policy *ThreatPolicy) (*Classifier, error) {
	var scorer Scorer
	if settings.Sandbox {
		scorer = NewSandboxScorer()
	} else {
		var err error
		scorer, err = NewTFLiteScorer(settings.Path, settings.Threads)
		if err != nil {
			return nil, err
		}
	}

	return NewWithScorer(scorer, policy), nil
}

// NewWithScorer creates a Classifier around an explicit scoring backend.
func NewWithScorer(scorer Scorer, policy *ThreatPolicy) *Classifier {
	if policy == nil {
		policy = DefaultThreatPolicy()
	}
	return &Classifier{
		scorer: scorer,
		policy: policy,
		logger: logging.ForService("classifier"),
	}
}

// Policy returns the threat policy the classifier resolves flags with.
func (c *Classifier) Policy() *ThreatPolicy { return c.policy }

// Predict scores a feature vector and returns the classification result.
// The input is defensively renormalized to the fixed vector length before
// scoring, so a malformed-length vector degrades by pad/truncate instead of
// failing; recurring length violations upstream are still a pipeline bug
// and are logged as such.
func (c *Classifier) Predict(vector hydroaudio.FeatureVector) (*Result, error) {
	if c.scorer == nil {
		return nil, errors.Newf("no scoring backend loaded").
			Component("classifier").
			Category(errors.CategoryModelUnavailable).
			Build()
	}

	if len(vector) != hydroaudio.FeatureVectorSize {
		c.logger.Warn("feature vector length mismatch, renormalizing",
			"got", len(vector),
			"want", hydroaudio.FeatureVectorSize)
	}
	normalized := hydroaudio.PadTruncate(vector, hydroaudio.FeatureVectorSize)

	c.mu.Lock()
	scores, err := c.scorer.Score(normalized)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if len(scores) != NumLabels() {
		return nil, errors.Newf("scorer returned %d scores for %d labels", len(scores), NumLabels()).
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	probs := softmax(scores)

	// Argmax with ties broken by lowest label index.
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	probabilities := make(map[string]float64, len(labels))
	for i, label := range labels {
		probabilities[label] = probs[i]
	}

	return &Result{
		EventType:     labels[best],
		Confidence:    probs[best],
		IsThreat:      c.policy.IsThreat(labels[best]),
		Probabilities: probabilities,
	}, nil
}

// softmax converts raw scores to a probability distribution.
func softmax(scores []float32) []float64 {
	maxScore := float64(scores[0])
	for _, s := range scores[1:] {
		if float64(s) > maxScore {
			maxScore = float64(s)
		}
	}

	exps := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		exps[i] = math.Exp(float64(s) - maxScore)
		sum += exps[i]
	}

	out := make([]float64, len(scores))
	for i := range exps {
		out[i] = exps[i] / sum
	}
	return out
}
