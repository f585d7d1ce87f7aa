// internal/predictor/predictor.go
package predictor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"career-predictor/internal/audit"
	"career-predictor/internal/classifier"
	"career-predictor/internal/common/config"
	apperrors "career-predictor/internal/common/errors"
	"career-predictor/internal/common/logger"
	"career-predictor/internal/common/metrics"
	"career-predictor/internal/common/observability"
	"career-predictor/internal/features"
	"career-predictor/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SourceHTTP   = "http"
	SourceWorker = "worker"
	SourceCLI    = "cli"
)

var ErrNoVocabulary = errors.New("NO_VOCABULARY")

// Cache stores scored outputs keyed by input digest.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Ping(ctx context.Context) error
}

type requestIDKey struct{}

// WithRequestID attaches the caller's request id for the audit log.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Info describes the serving configuration of the loaded model.
type Info struct {
	classifier.Info
	EncodingMode string `json:"encodingMode"`
}

// Predictor turns career profiles into predictions: it encodes categorical
// fields, assembles the feature vector and scores it with the model.
type Predictor struct {
	model         *classifier.LogisticRegression
	fixed         *features.Pipeline
	encodingMode  string
	handleInvalid string
	orderType     string
	config        Config
	cache         Cache
	audit         audit.Sink
	obs           *observability.Observability
	tracer        trace.Tracer
	logger        logger.Logger
}

// New resolves the encoding mode against the model. cache, sink and obs may be nil.
func New(model *classifier.LogisticRegression, cfg Config, cache Cache, sink audit.Sink, obs *observability.Observability, log logger.Logger) (*Predictor, error) {
	if model == nil {
		return nil, apperrors.NewModelNotLoadedError()
	}

	handle := cfg.HandleInvalid
	if handle == "" {
		handle = model.HandleInvalid()
	}
	if err := features.ValidateHandleInvalid(handle); err != nil {
		return nil, err
	}

	mode := cfg.EncodingMode
	if mode == "" || mode == config.EncodingModeAuto {
		mode = config.EncodingModeRequest
		if len(model.Vocabulary()) > 0 {
			mode = config.EncodingModeArtifact
		}
	}

	p := &Predictor{
		model:         model,
		encodingMode:  mode,
		handleInvalid: handle,
		orderType:     model.StringOrderType(),
		config:        cfg,
		cache:         cache,
		audit:         sink,
		obs:           obs,
		tracer:        observability.Tracer("career-predictor/predictor"),
		logger:        log.WithFields(map[string]interface{}{"component": "predictor"}),
	}

	switch mode {
	case config.EncodingModeArtifact:
		if len(model.Vocabulary()) == 0 {
			return nil, fmt.Errorf("%w: encoding mode %q needs a model vocabulary", ErrNoVocabulary, mode)
		}
		fixed, err := features.NewPipelineFromVocabulary(model.Vocabulary(), handle)
		if err != nil {
			return nil, err
		}
		p.fixed = fixed
	case config.EncodingModeRequest:
	default:
		return nil, fmt.Errorf("unknown encoding mode %q", mode)
	}

	return p, nil
}

// Info reports model metadata and the effective encoding mode.
func (p *Predictor) Info() Info {
	return Info{Info: p.model.Info(), EncodingMode: p.encodingMode}
}

// Ready reports whether the predictor can serve: the model is loaded and
// the cache, when enabled, answers.
func (p *Predictor) Ready(ctx context.Context) error {
	if p == nil || p.model == nil {
		return apperrors.NewModelNotLoadedError()
	}
	if p.config.CacheEnabled && p.cache != nil {
		if err := p.cache.Ping(ctx); err != nil {
			return apperrors.NewCacheUnavailableError(err)
		}
	}
	return nil
}

// Predict scores a single profile.
func (p *Predictor) Predict(ctx context.Context, source string, in models.CareerProfile) (*models.PredictionOutput, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "predictor.Predict", trace.WithAttributes(
		attribute.String("source", source),
		attribute.String("model.version", p.model.Version()),
	))
	defer span.End()

	out, cached, err := p.predictOne(ctx, in)
	if err != nil {
		p.recordFailure(ctx, span, source, err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.hit", cached), attribute.Int("prediction", out.Prediction))
	metrics.PredictionsTotal.WithLabelValues(source, strconv.Itoa(out.Prediction)).Inc()
	metrics.PredictionDuration.WithLabelValues(source, "single").Observe(time.Since(start).Seconds())
	p.obs.RecordPrediction(ctx, source, "ok")
	p.obs.RecordDuration(ctx, time.Since(start), source, "ok")

	p.record(ctx, source, []models.CareerProfile{in}, []models.PredictionOutput{*out})

	p.logger.Debug("prediction served", map[string]interface{}{
		"source":      source,
		"requestId":   RequestIDFrom(ctx),
		"prediction":  out.Prediction,
		"probability": out.Probability,
		"cached":      cached,
	})

	return out, nil
}

func (p *Predictor) predictOne(ctx context.Context, in models.CareerProfile) (*models.PredictionOutput, bool, error) {
	var key string
	cacheUsable := p.config.CacheEnabled && p.cache != nil
	if cacheUsable {
		key = p.cacheKey(in)
		var out models.PredictionOutput
		found, err := p.cache.GetJSON(ctx, key, &out)
		switch {
		case err != nil:
			metrics.PredictionCache.WithLabelValues("error").Inc()
			p.logger.Warn("cache lookup failed", map[string]interface{}{"error": err})
			cacheUsable = false
		case found:
			metrics.PredictionCache.WithLabelValues("hit").Inc()
			return &out, true, nil
		default:
			metrics.PredictionCache.WithLabelValues("miss").Inc()
		}
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	res, outs, err := p.score(ctx, []models.CareerProfile{in})
	if err != nil {
		return nil, false, err
	}
	if len(outs) == 0 {
		s := res.Skipped[0]
		metrics.SkippedRecords.Inc()
		return nil, false, apperrors.NewUnseenCategoryError(s.Column, s.Value)
	}
	out := outs[0]

	if cacheUsable {
		if err := p.cache.SetJSON(ctx, key, out, p.config.CacheTTL); err != nil {
			p.logger.Warn("cache store failed", map[string]interface{}{"error": err})
		}
	}

	return &out, false, nil
}

// PredictBatch scores a batch. Under request-time encoding the indexers are
// fitted across the whole batch.
func (p *Predictor) PredictBatch(ctx context.Context, source string, ins []models.CareerProfile) (*models.BatchOutput, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "predictor.PredictBatch", trace.WithAttributes(
		attribute.String("source", source),
		attribute.Int("batch.size", len(ins)),
	))
	defer span.End()

	if len(ins) == 0 {
		err := apperrors.NewEmptyBatchError()
		p.recordFailure(ctx, span, source, err)
		return nil, err
	}
	if p.config.MaxBatchSize > 0 && len(ins) > p.config.MaxBatchSize {
		err := apperrors.NewBatchTooLargeError(len(ins), p.config.MaxBatchSize)
		p.recordFailure(ctx, span, source, err)
		return nil, err
	}

	scoreCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	res, outs, err := p.score(scoreCtx, ins)
	if err != nil {
		p.recordFailure(ctx, span, source, err)
		return nil, err
	}

	skipped := res.SkippedIndices()
	metrics.SkippedRecords.Add(float64(len(skipped)))
	for _, o := range outs {
		metrics.PredictionsTotal.WithLabelValues(source, strconv.Itoa(o.Prediction)).Inc()
	}
	metrics.PredictionDuration.WithLabelValues(source, "batch").Observe(time.Since(start).Seconds())
	p.obs.RecordPrediction(ctx, source, "ok")
	p.obs.RecordDuration(ctx, time.Since(start), source, "ok")
	span.SetAttributes(attribute.Int("batch.scored", len(outs)), attribute.Int("batch.skipped", len(skipped)))

	scored := make([]models.CareerProfile, len(res.Rows))
	for i, row := range res.Rows {
		scored[i] = ins[row.Index]
	}
	p.record(ctx, source, scored, outs)

	return &models.BatchOutput{Predictions: outs, Skipped: skipped}, nil
}

// score runs the encoding pipeline and the model over the records.
func (p *Predictor) score(ctx context.Context, records []models.CareerProfile) (*features.Result, []models.PredictionOutput, error) {
	pipeline := p.fixed
	if pipeline == nil {
		fitted, err := features.FitPipeline(records, p.orderType, p.handleInvalid)
		if err != nil {
			return nil, nil, apperrors.NewInferenceFailedError(err)
		}
		pipeline = fitted
	}

	res, err := pipeline.Transform(records)
	if err != nil {
		var unseen *features.UnseenLabelError
		if errors.As(err, &unseen) {
			return nil, nil, apperrors.NewUnseenCategoryError(unseen.Column, unseen.Value).
				WithMetadata("row", unseen.Row)
		}
		return nil, nil, apperrors.NewInferenceFailedError(err)
	}

	outs := make([]models.PredictionOutput, 0, len(res.Rows))
	for i, row := range res.Rows {
		if i%256 == 0 && ctx.Err() != nil {
			return nil, nil, apperrors.NewPredictTimeoutError()
		}
		pred, err := p.model.Predict(row.Vector)
		if err != nil {
			return nil, nil, apperrors.NewInferenceFailedError(err)
		}
		outs = append(outs, models.PredictionOutput{
			Prediction:   pred.Label,
			Probability0: pred.Probability[0],
			Probability:  pred.Probability[1],
		})
	}

	if ctx.Err() != nil {
		return nil, nil, apperrors.NewPredictTimeoutError()
	}
	return res, outs, nil
}

// record writes audit entries. Failures are logged by the sink and never
// surface to the caller.
func (p *Predictor) record(ctx context.Context, source string, ins []models.CareerProfile, outs []models.PredictionOutput) {
	if p.audit == nil {
		return
	}

	auditCtx := context.WithoutCancel(ctx)
	if p.config.AuditTimeout > 0 {
		var cancel context.CancelFunc
		auditCtx, cancel = context.WithTimeout(auditCtx, p.config.AuditTimeout)
		defer cancel()
	}

	requestID := RequestIDFrom(ctx)
	for i := range outs {
		entry := audit.NewEntry(requestID, source, p.model.Version(), ins[i], outs[i])
		if err := p.audit.Record(auditCtx, entry); err != nil {
			p.logger.Debug("audit entry not fully written", map[string]interface{}{
				"entryId": entry.ID,
				"error":   err,
			})
		}
		if auditCtx.Err() != nil {
			p.logger.Warn("audit deadline reached", map[string]interface{}{
				"written": i + 1,
				"total":   len(outs),
			})
			return
		}
	}
}

func (p *Predictor) recordFailure(ctx context.Context, span trace.Span, source string, err error) {
	stdErr := apperrors.Normalize(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(stdErr.Code))
	metrics.PredictionFailures.WithLabelValues(source, string(stdErr.Code)).Inc()
	p.obs.RecordPrediction(ctx, source, "error")
}

func (p *Predictor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout > 0 {
		return context.WithTimeout(ctx, p.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// cacheKey digests the canonical JSON form of the profile. The model
// version, encoding mode and unseen-label policy are part of the key since
// each of them changes the output for the same profile.
func (p *Predictor) cacheKey(in models.CareerProfile) string {
	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return p.config.CacheKeyPrefix + p.model.Version() + ":" + p.encodingMode + ":" + p.handleInvalid + ":" + hex.EncodeToString(sum[:])
}
