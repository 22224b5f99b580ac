package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()
	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client, "", 0), mr
}

type publishedEvent struct {
	Topic string
	Key   string
	Event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
	return p.err
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type recordingIndexer struct {
	mu      sync.Mutex
	indexed []uint
	deleted []uint
	err     error
}

func (r *recordingIndexer) IndexProduct(_ context.Context, p transport.ProductResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, p.ID)
	return r.err
}

func (r *recordingIndexer) DeleteProduct(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return r.err
}

var errBroker = errors.New("broker down")

type productFixture struct {
	svc     *ProductService
	db      *gorm.DB
	cache   *cache.Cache
	mr      *miniredis.Miniredis
	events  *recordingPublisher
	indexer *recordingIndexer
}

func newProductFixture(t *testing.T) *productFixture {
	t.Helper()

	gdb := newTestDB(t)
	c, mr := newTestCache(t)
	events := &recordingPublisher{}
	indexer := &recordingIndexer{}

	return &productFixture{
		svc: &ProductService{
			Store:  repo.New(gdb),
			Cache:  c,
			Events: events,
			Index:  indexer,
		},
		db:      gdb,
		cache:   c,
		mr:      mr,
		events:  events,
		indexer: indexer,
	}
}
