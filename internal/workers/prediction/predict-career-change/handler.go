// internal/workers/prediction/predict-career-change/handler.go
package predictcareerchange

import (
	"context"
	"fmt"
	"strings"

	apperrors "career-predictor/internal/common/errors"
	"career-predictor/internal/common/logger"
	"career-predictor/internal/common/validation"
	"career-predictor/internal/models"
	"career-predictor/internal/predictor"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "predict-career-change"
)

// Predictor is the scoring surface the worker needs.
type Predictor interface {
	Predict(ctx context.Context, source string, in models.CareerProfile) (*models.PredictionOutput, error)
	Info() predictor.Info
}

type Handler struct {
	config       *Config
	predictor    Predictor
	validator    *validation.Validator
	errorHandler *apperrors.JobErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, p Predictor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		predictor:    p,
		validator:    validation.MustValidator(models.CareerProfileSchema),
		errorHandler: apperrors.NewJobErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	vars, err := job.GetVariablesAsMap()
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, apperrors.NewMalformedBodyError(err))
		return
	}

	ctx = predictor.WithRequestID(ctx, fmt.Sprintf("job-%d", job.Key))
	output, err := h.Execute(ctx, vars)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute validates the profile carried by vars and scores it.
func (h *Handler) Execute(ctx context.Context, vars map[string]interface{}) (*Output, error) {
	doc := vars
	if nested, ok := vars[ProfileVariable].(map[string]interface{}); ok {
		doc = nested
	}

	result, err := h.validator.ValidateGo(doc)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	profile, err := models.ProfileFromMap(doc)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	out, err := h.predictor.Predict(ctx, predictor.SourceWorker, *profile)
	if err != nil {
		return nil, err
	}

	h.logger.Info("prediction completed", map[string]interface{}{
		"requestId":  predictor.RequestIDFrom(ctx),
		"prediction": out.Prediction,
	})

	return &Output{
		Prediction:   out.Prediction,
		Probability0: out.Probability0,
		Probability:  out.Probability,
		ModelVersion: h.predictor.Info().Version,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
