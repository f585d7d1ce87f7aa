// internal/classifier/logistic.go
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"career-predictor/internal/features"

	"gopkg.in/yaml.v3"
)

const DefaultThreshold = 0.5

var (
	ErrInvalidArtifact   = errors.New("INVALID_ARTIFACT")
	ErrFeatureMismatch   = errors.New("FEATURE_MISMATCH")
	ErrUnsupportedFormat = errors.New("UNSUPPORTED_FORMAT")
)

// Artifact is the exported form of a trained binary logistic-regression model.
type Artifact struct {
	Version         string              `json:"version" yaml:"version"`
	Coefficients    []float64           `json:"coefficients" yaml:"coefficients"`
	Intercept       float64             `json:"intercept" yaml:"intercept"`
	Threshold       *float64            `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	NumFeatures     int                 `json:"numFeatures" yaml:"numFeatures"`
	FeatureNames    []string            `json:"featureNames,omitempty" yaml:"featureNames,omitempty"`
	Vocabulary      map[string][]string `json:"vocabulary,omitempty" yaml:"vocabulary,omitempty"`
	HandleInvalid   string              `json:"handleInvalid,omitempty" yaml:"handleInvalid,omitempty"`
	StringOrderType string              `json:"stringOrderType,omitempty" yaml:"stringOrderType,omitempty"`
}

// LogisticRegression scores assembled feature vectors. It is immutable after
// construction and safe for concurrent use.
type LogisticRegression struct {
	version         string
	coefficients    []float64
	intercept       float64
	threshold       float64
	vocabulary      map[string][]string
	handleInvalid   string
	stringOrderType string
}

// Prediction is the scored outcome for one vector.
type Prediction struct {
	Label       int
	Probability [2]float64
	RawMargin   float64
}

// Info describes the loaded model.
type Info struct {
	Version         string   `json:"version"`
	NumFeatures     int      `json:"numFeatures"`
	FeatureNames    []string `json:"featureNames"`
	Threshold       float64  `json:"threshold"`
	Intercept       float64  `json:"intercept"`
	HasVocabulary   bool     `json:"hasVocabulary"`
	HandleInvalid   string   `json:"handleInvalid"`
	StringOrderType string   `json:"stringOrderType"`
}

// Load reads a JSON or YAML artifact, chosen by file extension.
func Load(path string) (*LogisticRegression, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Parse decodes an artifact in the given format ("json", "yaml" or "yml").
func Parse(data []byte, format string) (*LogisticRegression, error) {
	var a Artifact
	switch format {
	case "json":
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return New(a)
}

// New validates an artifact and builds the model from it.
func New(a Artifact) (*LogisticRegression, error) {
	if a.NumFeatures != len(a.Coefficients) {
		return nil, fmt.Errorf("%w: numFeatures=%d but %d coefficients",
			ErrInvalidArtifact, a.NumFeatures, len(a.Coefficients))
	}
	if a.NumFeatures != features.NumFeatures {
		return nil, fmt.Errorf("%w: model expects %d features, pipeline assembles %d",
			ErrFeatureMismatch, a.NumFeatures, features.NumFeatures)
	}
	for i, c := range a.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: coefficient %d is not finite", ErrInvalidArtifact, i)
		}
	}
	if math.IsNaN(a.Intercept) || math.IsInf(a.Intercept, 0) {
		return nil, fmt.Errorf("%w: intercept is not finite", ErrInvalidArtifact)
	}

	threshold := DefaultThreshold
	if a.Threshold != nil {
		threshold = *a.Threshold
	}
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidArtifact, threshold)
	}

	if len(a.FeatureNames) > 0 {
		want := features.FeatureNames()
		if len(a.FeatureNames) != len(want) {
			return nil, fmt.Errorf("%w: %d feature names", ErrFeatureMismatch, len(a.FeatureNames))
		}
		for i := range want {
			if a.FeatureNames[i] != want[i] {
				return nil, fmt.Errorf("%w: feature %d is %q, expected %q",
					ErrFeatureMismatch, i, a.FeatureNames[i], want[i])
			}
		}
	}

	if err := features.ValidateHandleInvalid(a.HandleInvalid); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if err := features.ValidateOrderType(a.StringOrderType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if len(a.Vocabulary) > 0 {
		// Fail at load time rather than on the first request.
		if _, err := features.NewPipelineFromVocabulary(a.Vocabulary, a.HandleInvalid); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
	}

	coef := make([]float64, len(a.Coefficients))
	copy(coef, a.Coefficients)

	handle := a.HandleInvalid
	if handle == "" {
		handle = features.HandleSkip
	}
	order := a.StringOrderType
	if order == "" {
		order = features.OrderFrequencyDesc
	}

	return &LogisticRegression{
		version:         a.Version,
		coefficients:    coef,
		intercept:       a.Intercept,
		threshold:       threshold,
		vocabulary:      copyVocabulary(a.Vocabulary),
		handleInvalid:   handle,
		stringOrderType: order,
	}, nil
}

// Predict scores one assembled vector.
func (m *LogisticRegression) Predict(x []float64) (Prediction, error) {
	if len(x) != len(m.coefficients) {
		return Prediction{}, fmt.Errorf("%w: vector has %d values, model expects %d",
			ErrFeatureMismatch, len(x), len(m.coefficients))
	}

	margin := m.intercept
	for i, w := range m.coefficients {
		margin += w * x[i]
	}

	p1 := sigmoid(margin)
	label := 0
	if p1 > m.threshold {
		label = 1
	}

	return Prediction{
		Label:       label,
		Probability: [2]float64{1 - p1, p1},
		RawMargin:   margin,
	}, nil
}

// sigmoid avoids overflow of exp for large |z|.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func (m *LogisticRegression) Version() string { return m.version }

func (m *LogisticRegression) Threshold() float64 { return m.threshold }

// Vocabulary returns a copy of the categorical labels carried by the
// artifact, or nil.
func (m *LogisticRegression) Vocabulary() map[string][]string { return copyVocabulary(m.vocabulary) }

func copyVocabulary(vocab map[string][]string) map[string][]string {
	if len(vocab) == 0 {
		return nil
	}
	out := make(map[string][]string, len(vocab))
	for col, labels := range vocab {
		out[col] = append([]string(nil), labels...)
	}
	return out
}

func (m *LogisticRegression) HandleInvalid() string { return m.handleInvalid }

func (m *LogisticRegression) StringOrderType() string { return m.stringOrderType }

func (m *LogisticRegression) Info() Info {
	return Info{
		Version:         m.version,
		NumFeatures:     len(m.coefficients),
		FeatureNames:    features.FeatureNames(),
		Threshold:       m.threshold,
		Intercept:       m.intercept,
		HasVocabulary:   len(m.vocabulary) > 0,
		HandleInvalid:   m.handleInvalid,
		StringOrderType: m.stringOrderType,
	}
}
