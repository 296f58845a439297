package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"

	"support-desk-backend/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// ErrConnection wraps failures to reach or provision a tenant database. It is
// surfaced to the caller as-is; the registry never retries on its own.
var ErrConnection = errors.New("tenant database unreachable")

// TenantDirectory resolves a tenant id to its connection parameters.
// Satisfied by directory.Directory.
type TenantDirectory interface {
	GetTenantRecord(ctx context.Context, tenantID string) (model.TenantRecord, error)
}

// TenantConn is a live handle to one tenant's database. Handles are owned by
// the Registry; callers borrow them and must never Close one themselves.
type TenantConn interface {
	Ping(ctx context.Context) error
	Pool() *pgxpool.Pool
	Close() error
}

type pgxConn struct {
	pool *pgxpool.Pool
}

func (c *pgxConn) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }
func (c *pgxConn) Pool() *pgxpool.Pool            { return c.pool }
func (c *pgxConn) Close() error {
	c.pool.Close()
	return nil
}

// OpenFunc provisions (if needed) and opens the database for one tenant
// record. Swapped out in tests.
type OpenFunc func(ctx context.Context, rec model.TenantRecord) (TenantConn, error)

// Registry hands back a ready-to-use, tenant-scoped database connection,
// hiding setup and teardown from every caller. At most one live handle per
// tenant exists at any time; concurrent Acquire calls for the same tenant
// share a single in-flight creation.
type Registry struct {
	mu        sync.Mutex
	conns     map[string]TenantConn
	directory TenantDirectory
	open      OpenFunc
	group     singleflight.Group
}

func NewRegistry(dir TenantDirectory) *Registry {
	return NewRegistryWithOpener(dir, openTenantConn)
}

func NewRegistryWithOpener(dir TenantDirectory, open OpenFunc) *Registry {
	return &Registry{
		conns:     make(map[string]TenantConn),
		directory: dir,
		open:      open,
	}
}

// Acquire returns the cached connection for tenantID when it is still live,
// otherwise creates one: directory lookup, idempotent database provisioning,
// pool open, schema apply. A cached handle that fails its liveness check is
// evicted and recreated once, not recursively.
func (r *Registry) Acquire(ctx context.Context, tenantID string) (TenantConn, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	r.mu.Lock()
	conn, ok := r.conns[tenantID]
	r.mu.Unlock()

	if ok {
		if err := conn.Ping(ctx); err == nil {
			return conn, nil
		}
		log.Printf("[database] stale connection for tenant %s, recreating", tenantID)
		r.evict(tenantID, conn)
	}

	v, err, _ := r.group.Do(tenantID, func() (interface{}, error) {
		// Another flight may have filled the cache while we waited.
		r.mu.Lock()
		if existing, ok := r.conns[tenantID]; ok {
			r.mu.Unlock()
			return existing, nil
		}
		r.mu.Unlock()

		rec, err := r.directory.GetTenantRecord(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		log.Printf("[database] opening connection for tenant %s (db=%s)", tenantID, rec.DBName)
		created, err := r.open(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}

		r.mu.Lock()
		r.conns[tenantID] = created
		setTenantConnections(len(r.conns))
		r.mu.Unlock()
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(TenantConn), nil
}

func (r *Registry) evict(tenantID string, conn TenantConn) {
	r.mu.Lock()
	if r.conns[tenantID] == conn {
		delete(r.conns, tenantID)
		setTenantConnections(len(r.conns))
	}
	r.mu.Unlock()
	if err := conn.Close(); err != nil {
		log.Printf("[database] closing stale connection for tenant %s: %v", tenantID, err)
	}
}

// ReleaseAll closes every cached handle and clears the cache. Idempotent;
// a handle that fails to close is logged and the teardown continues.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]TenantConn)
	setTenantConnections(0)
	r.mu.Unlock()

	for tenantID, conn := range conns {
		if err := conn.Close(); err != nil {
			log.Printf("[database] failed to close connection for tenant %s: %v", tenantID, err)
			continue
		}
		log.Printf("[database] closed connection for tenant %s", tenantID)
	}
}

func tenantDSN(rec model.TenantRecord, dbName string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(rec.DBUser),
		url.QueryEscape(rec.DBPass),
		rec.DBHost,
		rec.DBPort,
		url.PathEscape(dbName),
	)
}

// ensureTenantDatabase connects to the well-known administrative database on
// the tenant's host and creates the tenant database when it does not exist.
// Check-then-create keeps the operation idempotent.
func ensureTenantDatabase(ctx context.Context, rec model.TenantRecord) error {
	admin, err := pgx.Connect(ctx, tenantDSN(rec, "postgres"))
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer admin.Close(ctx)

	var one int
	err = admin.QueryRow(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", rec.DBName).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check database %s: %w", rec.DBName, err)
	}

	if _, err := admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{rec.DBName}.Sanitize()); err != nil {
		return fmt.Errorf("create database %s: %w", rec.DBName, err)
	}
	return nil
}

func openTenantConn(ctx context.Context, rec model.TenantRecord) (TenantConn, error) {
	if err := ensureTenantDatabase(ctx, rec); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, tenantDSN(rec, rec.DBName))
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", rec.DBName, err)
	}

	for _, stmt := range model.TenantSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &pgxConn{pool: pool}, nil
}
