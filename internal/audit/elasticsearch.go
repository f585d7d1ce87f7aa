// internal/audit/elasticsearch.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"career-predictor/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchSink indexes entries as documents keyed by entry id.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSink(client *elasticsearch.Client, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Record(ctx context.Context, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return errors.NewAuditFailedError(s.Name(), err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(entry.ID),
	)
	if err != nil {
		return errors.NewAuditFailedError(s.Name(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return errors.NewAuditFailedError(s.Name(), fmt.Errorf("%s: %s", res.Status(), msg))
	}
	return nil
}
