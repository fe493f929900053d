// Package search mirrors incident aggregates into Elasticsearch and
// serves filtered incident queries from it.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/client"
	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// Indexer writes incident documents to the search index and runs
// filtered queries against it.
type Indexer struct {
	es     *client.ESClient
	index  string
	logger *zap.Logger
}

func NewIndexer(es *client.ESClient, index string, logger *zap.Logger) *Indexer {
	return &Indexer{
		es:     es,
		index:  index,
		logger: logger,
	}
}

// Index upserts the incident document. Document id is the incident id,
// so re-indexing an updated aggregate overwrites in place.
func (ix *Indexer) Index(ctx context.Context, inc *models.Incident) error {
	res, err := ix.es.IndexDocument(ctx, ix.index, inc.ID, inc)
	if err != nil {
		return fmt.Errorf("failed to index incident %s: %w", inc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index incident %s: %s", inc.ID, res.Status())
	}
	return nil
}

type searchHits struct {
	Hits struct {
		Hits []struct {
			Source models.Incident `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a tenant-scoped filtered query against the index.
func (ix *Indexer) Search(ctx context.Context, tenantID string, filter repository.IncidentFilter) ([]models.Incident, error) {
	must := []map[string]interface{}{
		{"term": map[string]interface{}{"tenant_id": tenantID}},
	}
	if filter.Severity != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"severity": filter.Severity}})
	}
	if filter.Status != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"status": filter.Status}})
	}
	if filter.Host != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"context.host": filter.Host}})
	}
	if !filter.Since.IsZero() || !filter.Until.IsZero() {
		rangeQuery := map[string]interface{}{}
		if !filter.Since.IsZero() {
			rangeQuery["gte"] = filter.Since.Format(time.RFC3339)
		}
		if !filter.Until.IsZero() {
			rangeQuery["lte"] = filter.Until.Format(time.RFC3339)
		}
		must = append(must, map[string]interface{}{"range": map[string]interface{}{"last_seen": rangeQuery}})
	}

	size := filter.Limit
	if size <= 0 {
		size = 100
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"sort": []map[string]interface{}{
			{"last_seen": map[string]interface{}{"order": "desc"}},
		},
		"size": size,
	}

	res, err := ix.es.Search(ctx, ix.index, query)
	if err != nil {
		return nil, fmt.Errorf("incident search failed: %w", err)
	}

	var hits searchHits
	if err := ix.es.ParseResponse(res, &hits); err != nil {
		return nil, fmt.Errorf("incident search failed: %w", err)
	}

	incidents := make([]models.Incident, 0, len(hits.Hits.Hits))
	for _, h := range hits.Hits.Hits {
		incidents = append(incidents, h.Source)
	}
	return incidents, nil
}
