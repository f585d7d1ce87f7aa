// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-predictor/internal/api"
	"career-predictor/internal/audit"
	"career-predictor/internal/classifier"
	"career-predictor/internal/common/config"
	"career-predictor/internal/common/database"
	apperrors "career-predictor/internal/common/errors"
	"career-predictor/internal/common/logger"
	"career-predictor/internal/models"
	"career-predictor/internal/predictor"

	pcc "career-predictor/internal/workers/prediction/predict-career-change"
)

// ==========================
// Test Environment
// ==========================

type auditIndex struct {
	mu   sync.Mutex
	docs map[string]map[string]interface{}
}

func (a *auditIndex) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.docs)
}

type environment struct {
	cfg       *config.Config
	redis     *miniredis.Miniredis
	index     *auditIndex
	predictor *predictor.Predictor
	server    *api.Server
}

// setupEnvironment wires the shipped config and model to an in-memory Redis
// and a fake Elasticsearch audit index.
func setupEnvironment(t testing.TB) *environment {
	t.Helper()
	log := logger.NewTestLogger(t)

	t.Setenv("MODEL_PATH", "../../models/career_model.json")
	cfg, err := config.LoadFromFile("../../configs/config.yaml")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	cfg.Cache.Enabled = true
	cfg.Database.Redis.Address = mr.Addr()

	idx := &auditIndex{docs: make(map[string]map[string]interface{})}
	esSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		body, _ := io.ReadAll(r.Body)
		var doc map[string]interface{}
		_ = json.Unmarshal(body, &doc)

		idx.mu.Lock()
		idx.docs[r.URL.Path] = doc
		idx.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(esSrv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{esSrv.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)

	model, err := classifier.Load(cfg.Model.Path)
	require.NoError(t, err)

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	sink := audit.NewMulti(log, audit.NewElasticsearchSink(es, cfg.Audit.Elasticsearch.Index))

	p, err := predictor.New(model, predictor.LoadConfig(cfg), rdb, sink, nil, log)
	require.NoError(t, err)

	return &environment{
		cfg:       cfg,
		redis:     mr,
		index:     idx,
		predictor: p,
		server:    api.NewServer(cfg.Server, cfg.Predictor.MaxBatchSize, p, log),
	}
}

func createProfileBody(overrides map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"fieldOfStudy":          "Computer Science",
		"currentOccupation":     "Software Developer",
		"gender":                "Female",
		"educationLevel":        "Master's",
		"industryGrowthRate":    "High",
		"familyInfluence":       "Low",
		"age":                   31,
		"yearsOfExperience":     7,
		"jobSatisfaction":       3,
		"workLifeBalance":       4,
		"jobOpportunities":      80,
		"salary":                72000,
		"jobSecurity":           5,
		"careerChangeInterest":  1,
		"skillsGap":             4,
		"mentorshipAvailable":   1,
		"certifications":        2,
		"freelancingExperience": 1,
		"geographicMobility":    1,
		"professionalNetworks":  6,
		"careerChangeEvents":    1,
		"technologyAdoption":    7,
	}
	for k, v := range overrides {
		body[k] = v
	}
	return body
}

func post(t *testing.T, env *environment, path string, body interface{}) (int, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.server.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

// ==========================
// End-to-End Flows
// ==========================

func TestE2E_ShippedConfigAndModel(t *testing.T) {
	env := setupEnvironment(t)

	assert.Equal(t, 8000, env.cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, env.cfg.Server.CORSOrigins)

	info := env.predictor.Info()
	assert.Equal(t, config.EncodingModeArtifact, info.EncodingMode)
	assert.Equal(t, 22, info.NumFeatures)
	assert.True(t, info.HasVocabulary)
}

func TestE2E_PredictIsCachedAndAudited(t *testing.T) {
	env := setupEnvironment(t)

	status, first := post(t, env, "/predict", createProfileBody(nil))
	require.Equal(t, http.StatusOK, status, string(first))

	var out models.PredictionOutput
	require.NoError(t, json.Unmarshal(first, &out))
	assert.InDelta(t, 1.0, out.Probability+out.Probability0, 1e-9)
	if out.Probability > env.predictor.Info().Threshold {
		assert.Equal(t, 1, out.Prediction)
	} else {
		assert.Equal(t, 0, out.Prediction)
	}

	assert.Len(t, env.redis.Keys(), 1)
	assert.True(t, strings.HasPrefix(env.redis.Keys()[0], "prediction:career-lr-2024.1:"))

	status, second := post(t, env, "/predict", createProfileBody(nil))
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, string(first), string(second))

	assert.Equal(t, 2, env.index.count())
}

func TestE2E_UnseenCategoryRejected(t *testing.T) {
	env := setupEnvironment(t)

	status, body := post(t, env, "/predict", createProfileBody(map[string]interface{}{
		"fieldOfStudy": "Astrophysics",
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "UNSEEN_CATEGORY")
	assert.Zero(t, env.index.count())
}

func TestE2E_BatchSkipsUnseenRecords(t *testing.T) {
	env := setupEnvironment(t)

	status, body := post(t, env, "/predict/batch", map[string]interface{}{
		"records": []interface{}{
			createProfileBody(nil),
			createProfileBody(map[string]interface{}{"currentOccupation": "Astronaut"}),
			createProfileBody(map[string]interface{}{"careerChangeInterest": 0}),
		},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var out models.BatchOutput
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Predictions, 2)
	assert.Equal(t, []int{1}, out.Skipped)
	assert.Greater(t, out.Predictions[0].Probability, out.Predictions[1].Probability)
	assert.Equal(t, 2, env.index.count())
}

func TestE2E_WorkerSharesPredictor(t *testing.T) {
	env := setupEnvironment(t)

	status, body := post(t, env, "/predict", createProfileBody(nil))
	require.Equal(t, http.StatusOK, status)
	var httpOut models.PredictionOutput
	require.NoError(t, json.Unmarshal(body, &httpOut))

	// Zeebe variables arrive as float64 after JSON decoding.
	vars := make(map[string]interface{})
	for k, v := range createProfileBody(nil) {
		if n, ok := v.(int); ok {
			vars[k] = float64(n)
			continue
		}
		vars[k] = v
	}

	h := pcc.NewHandler(pcc.LoadConfig(env.cfg), env.predictor, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), map[string]interface{}{pcc.ProfileVariable: vars})
	require.NoError(t, err)

	assert.Equal(t, httpOut.Prediction, out.Prediction)
	assert.InDelta(t, httpOut.Probability, out.Probability, 1e-12)
	assert.Equal(t, "career-lr-2024.1", out.ModelVersion)
}

func TestE2E_HealthAndModelInfo(t *testing.T) {
	env := setupEnvironment(t)

	for _, path := range []string{"/health", "/ready", "/model", "/favicon.ico"} {
		resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}

	env.redis.Close()
	err := env.predictor.Ready(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(apperrors.Normalize(err).Code))
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkPredict_HTTP(b *testing.B) {
	env := setupEnvironment(b)
	data, _ := json.Marshal(createProfileBody(nil))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(string(data)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := env.server.App().Test(req)
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}
