// internal/features/pipeline.go
package features

import (
	"fmt"

	"career-predictor/internal/models"
)

// NumFeatures is the length of every assembled vector.
var NumFeatures = len(models.CategoricalColumns) + len(models.NumericColumns)

// FeatureNames returns the assembled column names: the index columns
// followed by the numeric columns.
func FeatureNames() []string {
	names := make([]string, 0, NumFeatures)
	for _, col := range models.CategoricalColumns {
		names = append(names, col+"_index")
	}
	return append(names, models.NumericColumns...)
}

// Row is one assembled vector together with its position in the input batch.
type Row struct {
	Index  int
	Vector []float64
}

// Result holds the assembled rows and the records dropped under the skip policy.
type Result struct {
	Rows    []Row
	Skipped []UnseenLabelError
}

// SkippedIndices returns the batch positions of dropped records.
func (r *Result) SkippedIndices() []int {
	out := make([]int, len(r.Skipped))
	for i, s := range r.Skipped {
		out[i] = s.Row
	}
	return out
}

// Pipeline indexes the categorical columns and assembles the feature vector.
type Pipeline struct {
	indexers      []*StringIndexer
	handleInvalid string
}

// FitPipeline fits one indexer per categorical column on the given batch.
func FitPipeline(records []models.CareerProfile, orderType, handleInvalid string) (*Pipeline, error) {
	if err := ValidateHandleInvalid(handleInvalid); err != nil {
		return nil, err
	}

	columns := make([][]string, len(models.CategoricalColumns))
	for i := range records {
		for c, v := range records[i].Categorical() {
			columns[c] = append(columns[c], v)
		}
	}

	indexers := make([]*StringIndexer, len(models.CategoricalColumns))
	for c, col := range models.CategoricalColumns {
		idx, err := FitStringIndexer(col, columns[c], orderType)
		if err != nil {
			return nil, err
		}
		indexers[c] = idx
	}

	return &Pipeline{indexers: indexers, handleInvalid: handleInvalid}, nil
}

// NewPipelineFromVocabulary builds a pipeline from a fixed vocabulary that
// must cover every categorical column.
func NewPipelineFromVocabulary(vocab map[string][]string, handleInvalid string) (*Pipeline, error) {
	if err := ValidateHandleInvalid(handleInvalid); err != nil {
		return nil, err
	}

	indexers := make([]*StringIndexer, len(models.CategoricalColumns))
	for c, col := range models.CategoricalColumns {
		labels, ok := vocab[col]
		if !ok {
			return nil, fmt.Errorf("%w: no labels for %s", ErrIncompleteVocabMap, col)
		}
		idx, err := NewStringIndexerFromLabels(col, labels)
		if err != nil {
			return nil, err
		}
		indexers[c] = idx
	}

	return &Pipeline{indexers: indexers, handleInvalid: handleInvalid}, nil
}

// Vocabulary returns the labels of every indexer keyed by column.
func (p *Pipeline) Vocabulary() map[string][]string {
	out := make(map[string][]string, len(p.indexers))
	for _, idx := range p.indexers {
		out[idx.Column] = idx.Labels()
	}
	return out
}

// Transform encodes and assembles each record. Under the error policy the
// first unseen label aborts the whole call.
func (p *Pipeline) Transform(records []models.CareerProfile) (*Result, error) {
	res := &Result{Rows: make([]Row, 0, len(records))}

	for i := range records {
		vec := make([]float64, 0, NumFeatures)
		kept := true

		for c, value := range records[i].Categorical() {
			idx, keep, err := p.indexers[c].Encode(value, p.handleInvalid, i)
			if err != nil {
				return nil, err
			}
			if !keep {
				res.Skipped = append(res.Skipped, UnseenLabelError{
					Column: p.indexers[c].Column,
					Value:  value,
					Row:    i,
				})
				kept = false
				break
			}
			vec = append(vec, idx)
		}

		if !kept {
			continue
		}
		vec = append(vec, records[i].Numeric()...)
		res.Rows = append(res.Rows, Row{Index: i, Vector: vec})
	}

	return res, nil
}
