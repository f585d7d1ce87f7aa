// internal/api/handlers.go
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "career-predictor/internal/common/errors"
	"career-predictor/internal/common/validation"
	"career-predictor/internal/models"
	"career-predictor/internal/predictor"

	"github.com/gofiber/fiber/v3"
)

// handlePredict scores one 22-field profile.
func (s *Server) handlePredict(c fiber.Ctx) error {
	doc, err := decodeBody(c.Body())
	if err != nil {
		return err
	}

	profile, err := s.parseProfile(doc, "")
	if err != nil {
		return err
	}

	ctx := predictor.WithRequestID(c.Context(), requestID(c))
	out, err := s.service.Predict(ctx, predictor.SourceHTTP, *profile)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

// handlePredictBatch scores {"records": [...]}.
func (s *Server) handlePredictBatch(c fiber.Ctx) error {
	doc, err := decodeBody(c.Body())
	if err != nil {
		return err
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return newInputError([]validation.ValidationError{{
			Field: "(root)", Message: "Invalid type. Expected: object", Code: "INVALID_TYPE",
		}})
	}
	raw, ok := obj["records"].([]interface{})
	if !ok {
		return newInputError([]validation.ValidationError{{
			Field: "records", Message: "records must be an array", Code: "INVALID_TYPE",
		}})
	}
	if len(raw) == 0 {
		return apperrors.NewEmptyBatchError()
	}
	if s.maxBatchSize > 0 && len(raw) > s.maxBatchSize {
		return apperrors.NewBatchTooLargeError(len(raw), s.maxBatchSize)
	}

	profiles := make([]models.CareerProfile, 0, len(raw))
	var fieldErrs []validation.ValidationError
	for i, item := range raw {
		p, err := s.parseProfile(item, fmt.Sprintf("records.%d", i))
		if err != nil {
			var inErr *inputError
			if errors.As(err, &inErr) {
				fieldErrs = append(fieldErrs, inErr.fields...)
				continue
			}
			return err
		}
		profiles = append(profiles, *p)
	}
	if len(fieldErrs) > 0 {
		return newInputError(fieldErrs)
	}

	ctx := predictor.WithRequestID(c.Context(), requestID(c))
	out, err := s.service.PredictBatch(ctx, predictor.SourceHTTP, profiles)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

func (s *Server) handleFavicon(c fiber.Ctx) error {
	return c.JSON(fiber.Map{})
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleReady(c fiber.Ctx) error {
	if err := s.service.Ready(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) handleModel(c fiber.Ctx) error {
	return c.JSON(s.service.Info())
}

// decodeBody parses JSON keeping numbers exact so integral floats survive.
func decodeBody(body []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.NewMalformedBodyError(err)
	}
	if dec.More() {
		return nil, apperrors.NewMalformedBodyError(fmt.Errorf("unexpected data after JSON value"))
	}
	return doc, nil
}

// parseProfile validates one decoded document against the profile schema.
// prefix namespaces field names inside a batch.
func (s *Server) parseProfile(doc interface{}, prefix string) (*models.CareerProfile, error) {
	res, err := s.validator.ValidateGo(doc)
	if err != nil {
		return nil, apperrors.NewMalformedBodyError(err)
	}
	if !res.Valid {
		fields := res.Errors
		if prefix != "" {
			for i := range fields {
				if fields[i].Field == "(root)" {
					fields[i].Field = prefix
					continue
				}
				fields[i].Field = prefix + "." + fields[i].Field
			}
		}
		return nil, newInputError(fields)
	}

	obj, _ := doc.(map[string]interface{})
	profile, err := models.ProfileFromMap(obj)
	if err != nil {
		return nil, newInputError([]validation.ValidationError{{
			Field: prefix, Message: err.Error(), Code: "INVALID_VALUE",
		}})
	}
	return profile, nil
}
