// Package clickhouse implements the append-only event store on the
// analytical warehouse.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/client"
	"telemetry-service/internal/models"
	"telemetry-service/internal/util"
)

// EventRepository appends event batches and serves the correlation
// window query. Events are never updated or deleted here; retention is
// handled by the table's TTL settings.
type EventRepository struct {
	client *client.ClickHouseClient
	table  string
}

func NewEventRepository(ch *client.ClickHouseClient, table string, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		client: ch,
		table:  table,
	}
}

func (r *EventRepository) AppendEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		raw := "{}"
		if ev.Raw != nil {
			data, err := json.Marshal(ev.Raw)
			if err != nil {
				return fmt.Errorf("failed to encode raw payload for event %s: %w", ev.ID, err)
			}
			raw = string(data)
		}
		rows = append(rows, []interface{}{
			ev.ID, ev.TenantID, ev.AgentID, ev.TS,
			ev.Host, ev.App, ev.EventType,
			ev.SrcIP, ev.DstIP, ev.Username, ev.Severity, raw,
		})
	}

	query := fmt.Sprintf(`INSERT INTO %s (
        id, tenant_id, agent_id, ts, host, app, event_type,
        src_ip, dst_ip, username, severity, raw)`, r.table)

	if err := r.client.BatchInsert(ctx, query, rows); err != nil {
		util.Error("Failed to append events",
			zap.String("tenant_id", events[0].TenantID),
			zap.Int("events", len(events)),
			zap.Error(err))
		return fmt.Errorf("failed to append events: %w", err)
	}

	return nil
}

func (r *EventRepository) QueryWindow(ctx context.Context, tenantID string, since time.Time) ([]models.Event, error) {
	query := fmt.Sprintf(`
        SELECT id, tenant_id, agent_id, ts, host, app, event_type,
            src_ip, dst_ip, username, severity, raw
        FROM %s
        WHERE tenant_id = ? AND ts >= ?
        ORDER BY ts`, r.table)

	rows, err := r.client.QueryRows(ctx, query, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query event window for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			ev  models.Event
			raw string
		)
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.AgentID, &ev.TS,
			&ev.Host, &ev.App, &ev.EventType,
			&ev.SrcIP, &ev.DstIP, &ev.Username, &ev.Severity, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if raw != "" && raw != "{}" {
			if err := json.Unmarshal([]byte(raw), &ev.Raw); err != nil {
				return nil, fmt.Errorf("failed to decode raw payload for event %s: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event window for tenant %s: %w", tenantID, err)
	}

	return events, nil
}
