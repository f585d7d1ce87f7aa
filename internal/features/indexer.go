// internal/features/indexer.go
package features

import (
	"errors"
	"fmt"
	"sort"
)

// Label ordering applied when an indexer is fitted.
const (
	OrderFrequencyDesc = "frequencyDesc"
	OrderFrequencyAsc  = "frequencyAsc"
	OrderAlphabetDesc  = "alphabetDesc"
	OrderAlphabetAsc   = "alphabetAsc"
)

// Policies for labels missing from an indexer's vocabulary.
const (
	HandleSkip  = "skip"
	HandleError = "error"
	HandleKeep  = "keep"
)

var (
	ErrUnseenLabel        = errors.New("UNSEEN_LABEL")
	ErrInvalidOrderType   = errors.New("INVALID_ORDER_TYPE")
	ErrInvalidHandleMode  = errors.New("INVALID_HANDLE_INVALID")
	ErrDuplicateLabel     = errors.New("DUPLICATE_LABEL")
	ErrIncompleteVocabMap = errors.New("INCOMPLETE_VOCABULARY")
)

// UnseenLabelError identifies the column and value that could not be indexed.
type UnseenLabelError struct {
	Column string
	Value  string
	Row    int
}

func (e *UnseenLabelError) Error() string {
	return fmt.Sprintf("unseen label %q in column %s (row %d)", e.Value, e.Column, e.Row)
}

func (e *UnseenLabelError) Unwrap() error { return ErrUnseenLabel }

// ValidateOrderType reports whether t names a known ordering. Empty means the
// default, frequencyDesc.
func ValidateOrderType(t string) error {
	switch t {
	case "", OrderFrequencyDesc, OrderFrequencyAsc, OrderAlphabetDesc, OrderAlphabetAsc:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidOrderType, t)
}

// ValidateHandleInvalid reports whether h names a known policy. Empty means
// the default, skip.
func ValidateHandleInvalid(h string) error {
	switch h {
	case "", HandleSkip, HandleError, HandleKeep:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidHandleMode, h)
}

// StringIndexer maps the labels of one categorical column to float indices.
type StringIndexer struct {
	Column string
	labels []string
	index  map[string]float64
}

// FitStringIndexer learns a vocabulary from observed values.
func FitStringIndexer(column string, values []string, orderType string) (*StringIndexer, error) {
	if err := ValidateOrderType(orderType); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}

	switch orderType {
	case OrderFrequencyAsc:
		sort.Slice(labels, func(i, j int) bool {
			if counts[labels[i]] != counts[labels[j]] {
				return counts[labels[i]] < counts[labels[j]]
			}
			return labels[i] < labels[j]
		})
	case OrderAlphabetDesc:
		sort.Sort(sort.Reverse(sort.StringSlice(labels)))
	case OrderAlphabetAsc:
		sort.Strings(labels)
	default:
		sort.Slice(labels, func(i, j int) bool {
			if counts[labels[i]] != counts[labels[j]] {
				return counts[labels[i]] > counts[labels[j]]
			}
			return labels[i] < labels[j]
		})
	}

	return newIndexer(column, labels), nil
}

// NewStringIndexerFromLabels builds an indexer whose label i maps to index i.
func NewStringIndexerFromLabels(column string, labels []string) (*StringIndexer, error) {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			return nil, fmt.Errorf("%w: %q in column %s", ErrDuplicateLabel, l, column)
		}
		seen[l] = struct{}{}
	}
	cp := make([]string, len(labels))
	copy(cp, labels)
	return newIndexer(column, cp), nil
}

func newIndexer(column string, labels []string) *StringIndexer {
	index := make(map[string]float64, len(labels))
	for i, l := range labels {
		index[l] = float64(i)
	}
	return &StringIndexer{Column: column, labels: labels, index: index}
}

// Labels returns the vocabulary in index order.
func (s *StringIndexer) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Lookup returns the index of value and whether it is in the vocabulary.
func (s *StringIndexer) Lookup(value string) (float64, bool) {
	idx, ok := s.index[value]
	return idx, ok
}

// Encode applies the invalid-label policy. keep=false means the row is
// dropped (skip policy).
func (s *StringIndexer) Encode(value string, handleInvalid string, row int) (idx float64, keep bool, err error) {
	if v, ok := s.index[value]; ok {
		return v, true, nil
	}
	switch handleInvalid {
	case HandleKeep:
		return float64(len(s.labels)), true, nil
	case HandleError:
		return 0, false, &UnseenLabelError{Column: s.Column, Value: value, Row: row}
	default:
		return 0, false, nil
	}
}
