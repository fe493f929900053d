// Package scylla holds the durable row stores: incident aggregates,
// batch idempotency keys, tenants, agents and notification records.
package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"telemetry-service/internal/config"
	"telemetry-service/internal/util"
)

// PreparedStatements holds prepared statements that are actually used by the repositories
type PreparedStatements struct {
	RecordBatch *gocql.Query

	InsertIncident        *gocql.Query
	UpdateIncident        *gocql.Query
	GetIncidentByID       *gocql.Query
	ListIncidents         *gocql.Query
	AcknowledgeIncident   *gocql.Query
	SetOpenIncident       *gocql.Query
	GetOpenIncident       *gocql.Query
	DeleteOpenIncident    *gocql.Query
	GetTenant             *gocql.Query
	CreateTenant          *gocql.Query
	UpsertAgent           *gocql.Query
	UpsertAsset           *gocql.Query
	ListAssets            *gocql.Query
	InsertNotification    *gocql.Query
	SetNotificationStatus *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	// LWT: only the first writer of a (tenant, agent, batch) triple wins.
	prepared.RecordBatch = s.Session.Query(`
        INSERT INTO ingest_batches (tenant_id, agent_id, batch_id, created_at)
        VALUES (?, ?, ?, ?) IF NOT EXISTS`)

	prepared.InsertIncident = s.Session.Query(`
        INSERT INTO incidents (
            tenant_id, id, kind, severity, first_seen, last_seen,
            count, context, status
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.UpdateIncident = s.Session.Query(`
        UPDATE incidents
        SET severity = ?, last_seen = ?, count = ?, context = ?, status = ?
        WHERE tenant_id = ? AND id = ?`)

	prepared.GetIncidentByID = s.Session.Query(`
        SELECT tenant_id, id, kind, severity, first_seen, last_seen,
            count, context, status
        FROM incidents WHERE tenant_id = ? AND id = ?`)

	prepared.ListIncidents = s.Session.Query(`
        SELECT tenant_id, id, kind, severity, first_seen, last_seen,
            count, context, status
        FROM incidents WHERE tenant_id = ?`)

	prepared.AcknowledgeIncident = s.Session.Query(`
        UPDATE incidents SET status = ? WHERE tenant_id = ? AND id = ?`)

	prepared.SetOpenIncident = s.Session.Query(`
        INSERT INTO open_incidents (tenant_id, kind, incident_id)
        VALUES (?, ?, ?)`)

	prepared.GetOpenIncident = s.Session.Query(`
        SELECT incident_id FROM open_incidents WHERE tenant_id = ? AND kind = ?`)

	prepared.DeleteOpenIncident = s.Session.Query(`
        DELETE FROM open_incidents WHERE tenant_id = ? AND kind = ?`)

	prepared.GetTenant = s.Session.Query(`
        SELECT id, name, plan, status, ingest_key_hash, created_at
        FROM tenants WHERE id = ?`)

	prepared.CreateTenant = s.Session.Query(`
        INSERT INTO tenants (id, name, plan, status, ingest_key_hash, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`)

	prepared.UpsertAgent = s.Session.Query(`
        INSERT INTO agents (tenant_id, id, os, version, last_seen_at)
        VALUES (?, ?, ?, ?, ?)`)

	prepared.UpsertAsset = s.Session.Query(`
        INSERT INTO assets (tenant_id, host, os, agent_id, last_seen_at)
        VALUES (?, ?, ?, ?, ?)`)

	prepared.ListAssets = s.Session.Query(`
        SELECT tenant_id, host, os, agent_id, last_seen_at
        FROM assets WHERE tenant_id = ?`)

	prepared.InsertNotification = s.Session.Query(`
        INSERT INTO notifications (
            tenant_id, id, kind, severity, channel, payload, status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.SetNotificationStatus = s.Session.Query(`
        UPDATE notifications SET status = ? WHERE tenant_id = ? AND id = ?`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created successfully")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			lastErr = err
			if i < 2 {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
