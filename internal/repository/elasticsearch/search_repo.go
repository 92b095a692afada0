package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	elastic "github.com/elastic/go-elasticsearch/v8"

	"github.com/ngbank/aml-compliance/internal/config"
	"github.com/ngbank/aml-compliance/internal/domain"
)

// caseAlertDoc is the flattened Case+Alert summary document indexed for
// free-text investigator search, generalized from the teacher's
// AuditEvent-only index to also cover case and alert summaries (§4.8's
// search operation spans both).
type caseAlertDoc struct {
	DocType    string `json:"doc_type"` // "case" or "alert"
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Status     string `json:"status"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Severity   string `json:"severity,omitempty"`
	RiskLevel  string `json:"risk_level,omitempty"`
}

// SearchRepository indexes audit logs and case/alert summaries so the
// Audit & Forensics search operation and investigator tooling can run
// free-text queries the primary store isn't shaped for.
type SearchRepository struct {
	client     *elastic.Client
	auditIndex string
	caseIndex  string
}

func NewSearchRepository(cfg config.ElasticsearchConfig) (*SearchRepository, error) {
	client, err := elastic.NewClient(elastic.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if _, err := client.Info(); err != nil {
		return nil, fmt.Errorf("connect to elasticsearch: %w", err)
	}

	return &SearchRepository{
		client:     client,
		auditIndex: cfg.Index,
		caseIndex:  cfg.Index + "-cases",
	}, nil
}

// IndexAuditLog is a best-effort, async-friendly index call; the Audit
// Sink never blocks a write on its result (§4.1).
func (r *SearchRepository) IndexAuditLog(ctx context.Context, e *domain.AuditLog) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}

	res, err := r.client.Index(
		r.auditIndex,
		bytes.NewReader(data),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(e.EventID),
	)
	if err != nil {
		return fmt.Errorf("index audit log: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

func (r *SearchRepository) IndexCase(ctx context.Context, c *domain.Case) error {
	doc := caseAlertDoc{
		DocType:    "case",
		ID:         c.ID.String(),
		CustomerID: c.CustomerID.String(),
		Status:     string(c.Status),
		Title:      c.Title,
		Summary:    c.Summary,
		RiskLevel:  string(c.RiskLevel),
	}
	return r.indexDoc(ctx, r.caseIndex, doc.ID, doc)
}

func (r *SearchRepository) IndexAlert(ctx context.Context, a *domain.Alert) error {
	doc := caseAlertDoc{
		DocType:    "alert",
		ID:         a.ID.String(),
		CustomerID: a.CustomerID.String(),
		Status:     string(a.Status),
		Title:      a.Title,
		Summary:    a.Description,
		Severity:   string(a.Severity),
	}
	return r.indexDoc(ctx, r.caseIndex, doc.ID, doc)
}

func (r *SearchRepository) indexDoc(ctx context.Context, index, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}
	res, err := r.client.Index(
		index,
		bytes.NewReader(data),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

// SearchAuditLogs performs the free-text query_string search the Audit &
// Forensics search operation (§4.8) layers on top of the structured
// AuditLogFilter store query.
func (r *SearchRepository) SearchAuditLogs(ctx context.Context, queryString string, from, size int) ([]*domain.AuditLog, int64, error) {
	esQuery := map[string]any{
		"from":  from,
		"size":  size,
		"query": map[string]any{"query_string": map[string]any{"query": queryString}},
		"sort":  []map[string]any{{"timestamp": "desc"}},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, 0, fmt.Errorf("encode query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.auditIndex),
		r.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("perform search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source domain.AuditLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}

	logs := make([]*domain.AuditLog, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		src := h.Source
		logs = append(logs, &src)
	}
	return logs, result.Hits.Total.Value, nil
}
