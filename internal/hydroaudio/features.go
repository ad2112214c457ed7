package hydroaudio

import (
	"log/slog"
	"time"

	"github.com/echoguard/echoguard-go/internal/logging"
)

// Feature layout constants. The vector is the concatenation, in this order,
// of the flattened log-mel spectrogram, the flattened cepstral coefficient
// matrix and three per-frame scalar series, each capped to FrameBudget
// frames. FeatureVectorSize is the single pipeline-wide vector length; the
// final pad/truncate in Extract is the only place the length is forced.
const (
	NumMels     = 128 // mel filterbank size
	NumMFCC     = 13  // cepstral coefficients per frame
	FrameBudget = 87  // frames kept per feature family

	FeatureVectorSize = NumMels*FrameBudget + NumMFCC*FrameBudget + 3*FrameBudget
)

// FeatureVector is the fixed-length numeric summary of one clip.
type FeatureVector []float32

// PadTruncate forces v to exactly size elements, zero-padding on the right
// or truncating from the end. A correct-length input is returned unchanged.
func PadTruncate(v []float32, size int) []float32 {
	switch {
	case len(v) == size:
		return v
	case len(v) > size:
		return v[:size]
	default:
		padded := make([]float32, size)
		copy(padded, v)
		return padded
	}
}

// Extractor transforms raw waveforms into feature vectors. Extraction is
// deterministic: the same waveform always yields the same vector.
type Extractor struct {
	sampleRate    int
	targetSamples int
	melFilters    [][]float64
	logger        *slog.Logger
}

// NewExtractor creates an Extractor for waveforms at sampleRate Hz,
// normalized to clipDuration seconds before any feature computation.
func NewExtractor(sampleRate int, clipDuration float64) *Extractor {
	return &Extractor{
		sampleRate:    sampleRate,
		targetSamples: int(float64(sampleRate) * clipDuration),
		melFilters:    melFilterbank(NumMels, sampleRate),
		logger:        logging.ForService("hydroaudio"),
	}
}

// SampleRate returns the sample rate the extractor expects.
func (e *Extractor) SampleRate() int { return e.sampleRate }

// TargetSamples returns the normalized waveform length in samples.
func (e *Extractor) TargetSamples() int { return e.targetSamples }

// Extract computes the feature vector for a waveform at the extractor's
// sample rate. The waveform is first normalized to the target duration so
// every downstream computation sees identical input length; the result is
// always exactly FeatureVectorSize long.
func (e *Extractor) Extract(waveform []float32) FeatureVector {
	start := time.Now()

	waveform = PadTruncate(waveform, e.targetSamples)

	frames := powerSpectrogram(waveform)

	// Log-power mel spectrogram, flattened mel-major.
	melSpec := powerToDB(applyFilterbank(e.melFilters, frames))
	features := flattenTake(melSpec, NumMels*FrameBudget)

	// Cepstral coefficients from the log-mel energies, one column per frame,
	// flattened coefficient-major to mirror the mel layout.
	mfcc := make([][]float64, NumMFCC)
	for c := range mfcc {
		mfcc[c] = make([]float64, len(frames))
	}
	for f := range frames {
		column := make([]float64, NumMels)
		for m := range NumMels {
			column[m] = melSpec[m][f]
		}
		coeffs := dctII(column, NumMFCC)
		for c, v := range coeffs {
			mfcc[c][f] = v
		}
	}
	features = append(features, flattenTake(mfcc, NumMFCC*FrameBudget)...)

	// Per-frame scalar series, each capped to the frame budget.
	features = append(features, takeN(spectralCentroids(frames, e.sampleRate), FrameBudget)...)
	features = append(features, takeN(spectralRolloffs(frames, e.sampleRate, 0.85), FrameBudget)...)
	features = append(features, takeN(zeroCrossingRates(waveform, len(frames)), FrameBudget)...)

	vector := FeatureVector(PadTruncate(features, FeatureVectorSize))

	e.logger.Debug("features extracted",
		"samples", len(waveform),
		"frames", len(frames),
		"vector_size", len(vector),
		"duration_ms", time.Since(start).Milliseconds())

	return vector
}

// flattenTake flattens matrix row-major and returns its first n values,
// zero-padded when the matrix holds fewer.
func flattenTake(matrix [][]float64, n int) []float32 {
	out := make([]float32, 0, n)
	for _, row := range matrix {
		for _, v := range row {
			if len(out) == n {
				return out
			}
			out = append(out, float32(v))
		}
	}
	for len(out) < n {
		out = append(out, 0)
	}
	return out
}

// takeN returns the first n values of series as float32, zero-padded when
// the series is shorter.
func takeN(series []float64, n int) []float32 {
	out := make([]float32, n)
	for i := range n {
		if i < len(series) {
			out[i] = float32(series[i])
		}
	}
	return out
}
