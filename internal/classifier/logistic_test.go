// internal/classifier/logistic_test.go
package classifier

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"career-predictor/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestArtifact() Artifact {
	return Artifact{
		Version:      "unit",
		Coefficients: make([]float64, features.NumFeatures),
		NumFeatures:  features.NumFeatures,
	}
}

func ptr(f float64) *float64 { return &f }

func TestLoad_JSON(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "model.json"))
	require.NoError(t, err)

	info := m.Info()
	assert.Equal(t, "test-lr-1", info.Version)
	assert.Equal(t, 22, info.NumFeatures)
	assert.Equal(t, 0.5, info.Threshold)
	assert.Equal(t, -1.0, info.Intercept)
	assert.True(t, info.HasVocabulary)
	assert.Equal(t, features.HandleSkip, info.HandleInvalid)
	assert.Equal(t, features.OrderFrequencyDesc, info.StringOrderType)
	assert.Equal(t, []string{"Male", "Female"}, m.Vocabulary()["gender"])
}

func TestLoad_YAML(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "model.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "test-lr-yaml", m.Version())
	assert.Nil(t, m.Vocabulary())
	assert.False(t, m.Info().HasVocabulary)
	assert.Equal(t, features.HandleSkip, m.HandleInvalid())
	assert.Equal(t, features.OrderFrequencyDesc, m.StringOrderType())
	assert.Equal(t, DefaultThreshold, m.Threshold())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.json"))
	assert.Error(t, err)

	dir := t.TempDir()
	txt := filepath.Join(dir, "model.txt")
	require.NoError(t, os.WriteFile(txt, []byte("{}"), 0o644))
	_, err = Load(txt)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	bad := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = Load(bad)
	assert.True(t, errors.Is(err, ErrInvalidArtifact))
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *Artifact)
		wantErr error
	}{
		{
			name:    "coefficient count differs from numFeatures",
			mutate:  func(a *Artifact) { a.NumFeatures = 21 },
			wantErr: ErrInvalidArtifact,
		},
		{
			name: "wrong feature count",
			mutate: func(a *Artifact) {
				a.Coefficients = []float64{1, 2, 3}
				a.NumFeatures = 3
			},
			wantErr: ErrFeatureMismatch,
		},
		{
			name:    "non-finite coefficient",
			mutate:  func(a *Artifact) { a.Coefficients[4] = math.NaN() },
			wantErr: ErrInvalidArtifact,
		},
		{
			name:    "non-finite intercept",
			mutate:  func(a *Artifact) { a.Intercept = math.Inf(1) },
			wantErr: ErrInvalidArtifact,
		},
		{
			name:    "threshold above one",
			mutate:  func(a *Artifact) { a.Threshold = ptr(1.5) },
			wantErr: ErrInvalidArtifact,
		},
		{
			name: "feature names out of order",
			mutate: func(a *Artifact) {
				names := features.FeatureNames()
				names[6], names[7] = names[7], names[6]
				a.FeatureNames = names
			},
			wantErr: ErrFeatureMismatch,
		},
		{
			name:    "unknown handleInvalid",
			mutate:  func(a *Artifact) { a.HandleInvalid = "drop" },
			wantErr: ErrInvalidArtifact,
		},
		{
			name:    "unknown order type",
			mutate:  func(a *Artifact) { a.StringOrderType = "random" },
			wantErr: ErrInvalidArtifact,
		},
		{
			name:    "incomplete vocabulary",
			mutate:  func(a *Artifact) { a.Vocabulary = map[string][]string{"gender": {"Male"}} },
			wantErr: ErrInvalidArtifact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := createTestArtifact()
			tt.mutate(&a)
			_, err := New(a)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), err.Error())
		})
	}
}

func TestNew_VocabularyIsCopied(t *testing.T) {
	vocab := map[string][]string{
		"fieldOfStudy":       {"Medicine", "Law"},
		"currentOccupation":  {"Doctor", "Lawyer"},
		"gender":             {"Male", "Female"},
		"educationLevel":     {"PhD"},
		"industryGrowthRate": {"High"},
		"familyInfluence":    {"None"},
	}
	a := createTestArtifact()
	a.Vocabulary = vocab
	m, err := New(a)
	require.NoError(t, err)

	vocab["gender"][0] = "Other"
	delete(vocab, "fieldOfStudy")
	assert.Equal(t, []string{"Male", "Female"}, m.Vocabulary()["gender"])
	assert.Len(t, m.Vocabulary(), 6)

	got := m.Vocabulary()
	got["gender"][1] = "Other"
	got["extra"] = []string{"x"}
	assert.Equal(t, []string{"Male", "Female"}, m.Vocabulary()["gender"])
	assert.NotContains(t, m.Vocabulary(), "extra")
}

func TestNew_ExplicitZeroThreshold(t *testing.T) {
	a := createTestArtifact()
	a.Threshold = ptr(0)
	m, err := New(a)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Threshold())
}

func TestPredict(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "model.json"))
	require.NoError(t, err)

	x := make([]float64, 22)
	p, err := m.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Label)
	assert.InDelta(t, -1.0, p.RawMargin, 1e-12)
	assert.InDelta(t, 0.2689414213699951, p.Probability[1], 1e-12)
	assert.InDelta(t, 1.0, p.Probability[0]+p.Probability[1], 1e-12)

	// careerChangeInterest carries weight 2.0
	x[13] = 1
	p, err = m.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Label)
	assert.InDelta(t, 0.7310585786300049, p.Probability[1], 1e-12)

	// fieldOfStudy_index 0.5, jobSatisfaction -0.1
	x[0], x[8] = 2, 10
	p, err = m.Predict(x)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.RawMargin, 1e-12)
}

func TestPredict_ThresholdIsStrict(t *testing.T) {
	m, err := New(createTestArtifact())
	require.NoError(t, err)

	p, err := m.Predict(make([]float64, 22))
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.Probability[1])
	assert.Equal(t, 0, p.Label)
}

func TestPredict_ExtremeMargins(t *testing.T) {
	a := createTestArtifact()
	a.Intercept = 1000
	m, err := New(a)
	require.NoError(t, err)

	p, err := m.Predict(make([]float64, 22))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Label)
	assert.Equal(t, 1.0, p.Probability[1])
	assert.False(t, math.IsNaN(p.Probability[0]))

	a.Intercept = -1000
	m, err = New(a)
	require.NoError(t, err)
	p, err = m.Predict(make([]float64, 22))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Label)
	assert.Equal(t, 0.0, p.Probability[1])
	assert.Equal(t, 1.0, p.Probability[0])
}

func TestPredict_WrongLength(t *testing.T) {
	m, err := New(createTestArtifact())
	require.NoError(t, err)
	_, err = m.Predict([]float64{1, 2})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}
