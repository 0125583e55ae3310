package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/loan/evaluation"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	json "github.com/goccy/go-json"
)

const DefaultAuditIndex = "loan-evaluations"

// AuditIndex writes every evaluation result to Elasticsearch, keyed by its
// evaluation id.
type AuditIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewAuditIndex(client *elasticsearch.Client, index string) *AuditIndex {
	if index == "" {
		index = DefaultAuditIndex
	}
	return &AuditIndex{client: client, index: index}
}

func (a *AuditIndex) IndexEvaluation(ctx context.Context, result *evaluation.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return apperrors.NewAuditIndexFailedError(fmt.Errorf("encode result: %w", err))
	}

	req := esapi.IndexRequest{
		Index:      a.index,
		DocumentID: result.EvaluationID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return apperrors.NewAuditIndexFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return apperrors.NewAuditIndexFailedError(fmt.Errorf("index %s: %s: %s", a.index, res.Status(), bytes.TrimSpace(msg)))
	}
	return nil
}
