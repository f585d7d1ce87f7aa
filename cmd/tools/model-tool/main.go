// cmd/tools/model-tool/main.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"career-predictor/internal/classifier"
	"career-predictor/internal/common/config"
	apperrors "career-predictor/internal/common/errors"
	"career-predictor/internal/common/logger"
	"career-predictor/internal/common/validation"
	"career-predictor/internal/models"
	"career-predictor/internal/predictor"
	pcc "career-predictor/internal/workers/prediction/predict-career-change"
	"career-predictor/pkg/registry"
)

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "inspect":
		err = inspect(os.Args[2:])
	case "predict":
		err = predict(os.Args[2:])
	case "register":
		err = register(os.Args[2:])
	case "validate":
		err = validateRegistry(os.Args[2:])
	case "help":
		help()
	default:
		help()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func inspect(args []string) error {
	fs := pflag.NewFlagSet("inspect", pflag.ExitOnError)
	modelPath := fs.String("model", "models/career_model.json", "Path to the model artifact")
	_ = fs.Parse(args)

	model, err := classifier.Load(*modelPath)
	if err != nil {
		return err
	}
	return printJSON(model.Info())
}

// predict scores a JSON file holding one profile, an array of profiles or
// {"records": [...]} without touching the cache or audit sinks.
func predict(args []string) error {
	fs := pflag.NewFlagSet("predict", pflag.ExitOnError)
	modelPath := fs.String("model", "models/career_model.json", "Path to the model artifact")
	input := fs.String("input", "", "JSON file with the profile(s) to score")
	mode := fs.String("mode", config.EncodingModeAuto, "Encoding mode: auto, request, artifact")
	handleInvalid := fs.String("handle-invalid", "", "Override the artifact's unseen-label policy")
	_ = fs.Parse(args)

	if *input == "" {
		fs.Usage()
		return fmt.Errorf("--input is required")
	}

	model, err := classifier.Load(*modelPath)
	if err != nil {
		return err
	}
	p, err := predictor.New(model, predictor.Config{
		EncodingMode:  *mode,
		HandleInvalid: *handleInvalid,
	}, nil, nil, nil, logger.NewNoOpLogger())
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		return err
	}
	profiles, single, err := readProfiles(data)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if single {
		out, err := p.Predict(ctx, predictor.SourceCLI, profiles[0])
		if err != nil {
			return err
		}
		return printJSON(out)
	}
	out, err := p.PredictBatch(ctx, predictor.SourceCLI, profiles)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func readProfiles(data []byte) ([]models.CareerProfile, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, false, apperrors.NewMalformedBodyError(err)
	}

	var raw []interface{}
	single := false
	switch v := doc.(type) {
	case []interface{}:
		raw = v
	case map[string]interface{}:
		if records, ok := v["records"].([]interface{}); ok {
			raw = records
		} else {
			raw = []interface{}{v}
			single = true
		}
	default:
		return nil, false, apperrors.NewInvalidInputError("input must be an object or an array")
	}
	if len(raw) == 0 {
		return nil, false, apperrors.NewEmptyBatchError()
	}

	validator := validation.MustValidator(models.CareerProfileSchema)
	profiles := make([]models.CareerProfile, 0, len(raw))
	for i, r := range raw {
		res, err := validator.ValidateGo(r)
		if err != nil {
			return nil, false, apperrors.NewInvalidInputError(err.Error())
		}
		if !res.Valid {
			return nil, false, apperrors.NewInvalidInputError(fmt.Sprintf("record %d: %s", i, strings.Join(res.GetErrorMessages(), "; ")))
		}
		obj, _ := r.(map[string]interface{})
		profile, err := models.ProfileFromMap(obj)
		if err != nil {
			return nil, false, apperrors.NewInvalidInputError(fmt.Sprintf("record %d: %v", i, err))
		}
		profiles = append(profiles, *profile)
	}
	return profiles, single, nil
}

// register writes the predict-career-change activity descriptor, with the
// profile schema and the loaded model's version, into the registry file.
func register(args []string) error {
	fs := pflag.NewFlagSet("register", pflag.ExitOnError)
	path := fs.String("path", "configs/activity-registry.json", "Path to registry file")
	modelPath := fs.String("model", "models/career_model.json", "Path to the model artifact")
	status := fs.String("status", "completed", "Implementation status")
	_ = fs.Parse(args)

	model, err := classifier.Load(*modelPath)
	if err != nil {
		return err
	}

	var inputSchema map[string]interface{}
	if err := json.Unmarshal(models.CareerProfileSchema, &inputSchema); err != nil {
		return fmt.Errorf("decode profile schema: %w", err)
	}

	reg, err := registry.LoadOrCreate(*path)
	if err != nil {
		return err
	}
	replaced := reg.Upsert(registry.Activity{
		ID:                   pcc.TaskType,
		DisplayName:          "Predict Career Change",
		Description:          "Scores a career profile with the logistic regression model",
		Category:             "prediction",
		Version:              "1.0.0",
		TaskType:             pcc.TaskType,
		ImplementationStatus: *status,
		ModelVersion:         model.Version(),
		InputSchema:          inputSchema,
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"prediction":    map[string]interface{}{"type": "integer", "enum": []int{0, 1}},
				"probability_0": map[string]interface{}{"type": "number"},
				"probability":   map[string]interface{}{"type": "number"},
				"modelVersion":  map[string]interface{}{"type": "string"},
			},
		},
		ErrorCodes: []string{
			string(apperrors.ErrCodeInvalidInput),
			string(apperrors.ErrCodeUnseenCategory),
			string(apperrors.ErrCodePredictTimeout),
			string(apperrors.ErrCodeInferenceFailed),
		},
		Timeout: "30s",
		Retries: apperrors.GetRetryCount(apperrors.ErrCodePredictTimeout),
		Tags:    []string{"ml", "logistic-regression"},
	})
	if err := reg.Save(*path); err != nil {
		return err
	}

	if replaced {
		fmt.Printf("Updated activity: %s (model %s)\n", pcc.TaskType, model.Version())
	} else {
		fmt.Printf("Added activity: %s (model %s)\n", pcc.TaskType, model.Version())
	}
	return nil
}

func validateRegistry(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	path := fs.String("path", "configs/activity-registry.json", "Path to registry file")
	_ = fs.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func help() {
	fmt.Println(`
Usage: model-tool <command> [flags]

Commands:
  inspect   Print the metadata of a model artifact
  predict   Score profiles from a JSON file
  register  Add or refresh the predict-career-change activity in the registry
  validate  Validate the registry file
  help      Show this help message

Examples:
  model-tool inspect --model models/career_model.json
  model-tool predict --model models/career_model.json --input profile.json --mode request
  model-tool register --path configs/activity-registry.json`)
}
