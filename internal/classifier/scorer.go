package classifier

import (
	"os"
	"time"

	"github.com/tphakala/go-tflite"

	"github.com/echoguard/echoguard-go/internal/errors"
)

// Scorer is the opaque scoring backend contract: it maps a feature vector
// of exactly hydroaudio.FeatureVectorSize values to one raw, unnormalized
// score per label in canonical order. Implementations need not be safe for
// concurrent use; the Classifier serializes calls.
type Scorer interface {
	Score(vector []float32) ([]float32, error)
}

// tfliteScorer runs inference through a TensorFlow Lite interpreter.
type tfliteScorer struct {
	interpreter *tflite.Interpreter
	model       *tflite.Model
}

// NewTFLiteScorer loads the model file at modelPath and prepares an
// interpreter for it. A missing or unreadable model is a configuration
// error, not something to paper over with an untrained fallback.
func NewTFLiteScorer(modelPath string, threads int) (Scorer, error) {
	start := time.Now()

	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelUnavailable).
			FileContext(modelPath, 0).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_size_bytes", len(modelData)).
			Timing("model-init", time.Since(start)).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	if threads > 0 {
		options.SetNumThread(threads)
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create TensorFlow Lite interpreter").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.Newf("tensor allocation failed").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	return &tfliteScorer{interpreter: interpreter, model: model}, nil
}

func (s *tfliteScorer) Score(vector []float32) ([]float32, error) {
	inputTensor := s.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, errors.Newf("cannot get input tensor").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	copy(inputTensor.Float32s(), vector)

	if status := s.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("tensor invoke failed: %v", status).
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	outputTensor := s.interpreter.GetOutputTensor(0)
	size := outputTensor.Dim(outputTensor.NumDims() - 1)
	scores := make([]float32, size)
	copy(scores, outputTensor.Float32s())

	return scores, nil
}

// staticScorer returns fixed logits favoring the ambient label. Installed
// only when sandbox mode is explicitly requested, so the process can run
// without a trained model while making the absence of one obvious.
type staticScorer struct{}

// NewSandboxScorer creates the sandbox scoring backend.
func NewSandboxScorer() Scorer {
	return staticScorer{}
}

func (staticScorer) Score(vector []float32) ([]float32, error) {
	scores := make([]float32, NumLabels())
	for i, label := range labels {
		if label == LabelAmbient {
			scores[i] = 4.0
		}
	}
	return scores, nil
}
