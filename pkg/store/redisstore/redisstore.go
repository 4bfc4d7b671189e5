// Package redisstore is a store.Backend kept in Redis hashes.
//
// Key layout, below a configurable prefix:
//
//	{prefix}:workspaces         set of workspace names
//	{prefix}:namespaces         hash prefix -> uri
//	{prefix}:ws:{name}:nodes    hash path -> JSON record
//	{prefix}:ws:{name}:ids      hash identifier -> path
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/store"
)

// DefaultPrefix is used when the URL carries no prefix query parameter
const DefaultPrefix = "nodeshell"

// Backend stores node records in Redis
type Backend struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

var _ store.Backend = (*Backend)(nil)

// Open connects to the Redis server at redisURL (redis://[user:pass@]host:port/db).
// An optional "prefix" query parameter namespaces all keys.
func Open(ctx context.Context, redisURL string, logger zerolog.Logger) (*Backend, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required")
	}

	prefix := DefaultPrefix
	if i := strings.Index(redisURL, "?"); i >= 0 {
		var rest []string
		for _, kv := range strings.Split(redisURL[i+1:], "&") {
			if v, ok := strings.CutPrefix(kv, "prefix="); ok {
				if v != "" {
					prefix = v
				}
				continue
			}
			rest = append(rest, kv)
		}
		redisURL = redisURL[:i]
		if len(rest) > 0 {
			redisURL += "?" + strings.Join(rest, "&")
		}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	b := &Backend{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "redisstore").Str("prefix", prefix).Logger(),
	}
	if err := b.ensureWorkspace(ctx, store.DefaultWorkspace); err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) workspacesKey() string { return b.prefix + ":workspaces" }
func (b *Backend) namespacesKey() string { return b.prefix + ":namespaces" }
func (b *Backend) nodesKey(ws string) string { return b.prefix + ":ws:" + ws + ":nodes" }
func (b *Backend) idsKey(ws string) string { return b.prefix + ":ws:" + ws + ":ids" }

func (b *Backend) ensureWorkspace(ctx context.Context, name string) error {
	added, err := b.client.SAdd(ctx, b.workspacesKey(), name).Result()
	if err != nil {
		return fmt.Errorf("failed to register workspace: %w", err)
	}
	if added == 0 {
		return nil
	}
	return b.commit(ctx, name, &store.Batch{Puts: []*store.Record{store.NewRootRecord()}})
}

func (b *Backend) Name() string { return "redis" }

func (b *Backend) Workspaces(ctx context.Context) ([]string, error) {
	names, err := b.client.SMembers(ctx, b.workspacesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return names, nil
}

func (b *Backend) CreateWorkspace(ctx context.Context, name string) error {
	added, err := b.client.SAdd(ctx, b.workspacesKey(), name).Result()
	if err != nil {
		return fmt.Errorf("failed to register workspace: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("workspace %q: %w", name, content.ErrItemExists)
	}
	return b.commit(ctx, name, &store.Batch{Puts: []*store.Record{store.NewRootRecord()}})
}

func (b *Backend) checkWorkspace(ctx context.Context, name string) error {
	ok, err := b.client.SIsMember(ctx, b.workspacesKey(), name).Result()
	if err != nil {
		return fmt.Errorf("failed to check workspace: %w", err)
	}
	if !ok {
		return fmt.Errorf("workspace %q: %w", name, content.ErrNoSuchWorkspace)
	}
	return nil
}

func decode(data string) (*store.Record, error) {
	var rec store.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

func (b *Backend) Get(ctx context.Context, workspace, path string) (*store.Record, error) {
	if err := b.checkWorkspace(ctx, workspace); err != nil {
		return nil, err
	}
	data, err := b.client.HGet(ctx, b.nodesKey(workspace), path).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("node %s: %w", path, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", path, err)
	}
	return decode(data)
}

func (b *Backend) GetByIdentifier(ctx context.Context, workspace, id string) (*store.Record, error) {
	if err := b.checkWorkspace(ctx, workspace); err != nil {
		return nil, err
	}
	path, err := b.client.HGet(ctx, b.idsKey(workspace), id).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("identifier %s: %w", id, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identifier %s: %w", id, err)
	}
	rec, err := b.Get(ctx, workspace, path)
	if err != nil {
		return nil, err
	}
	if rec.Identifier != id {
		return nil, fmt.Errorf("identifier %s: %w", id, content.ErrNotFound)
	}
	return rec, nil
}

// Commit applies the batch inside a MULTI/EXEC transaction
func (b *Backend) Commit(ctx context.Context, workspace string, batch *store.Batch) error {
	if err := b.checkWorkspace(ctx, workspace); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	return b.commit(ctx, workspace, batch)
}

func (b *Backend) commit(ctx context.Context, workspace string, batch *store.Batch) error {
	nodesKey, idsKey := b.nodesKey(workspace), b.idsKey(workspace)

	kept := make(map[string]struct{}, len(batch.Puts))
	for _, rec := range batch.Puts {
		kept[rec.Identifier] = struct{}{}
	}

	// Identifiers of records about to be deleted or replaced
	var staleIDs []string
	stale := append([]string(nil), batch.Deletes...)
	for _, rec := range batch.Puts {
		stale = append(stale, rec.Path)
	}
	if len(stale) > 0 {
		existing, err := b.client.HMGet(ctx, nodesKey, stale...).Result()
		if err != nil {
			return fmt.Errorf("failed to read records: %w", err)
		}
		for _, v := range existing {
			s, ok := v.(string)
			if !ok {
				continue
			}
			old, err := decode(s)
			if err != nil {
				return err
			}
			if _, reused := kept[old.Identifier]; !reused {
				staleIDs = append(staleIDs, old.Identifier)
			}
		}
	}

	puts := make(map[string]interface{}, len(batch.Puts))
	ids := make(map[string]interface{}, len(batch.Puts))
	for _, rec := range batch.Puts {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.Path, err)
		}
		puts[rec.Path] = string(data)
		ids[rec.Identifier] = rec.Path
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(batch.Deletes) > 0 {
			pipe.HDel(ctx, nodesKey, batch.Deletes...)
		}
		if len(staleIDs) > 0 {
			pipe.HDel(ctx, idsKey, staleIDs...)
		}
		if len(puts) > 0 {
			pipe.HSet(ctx, nodesKey, puts)
			pipe.HSet(ctx, idsKey, ids)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	b.logger.Debug().
		Str("workspace", workspace).
		Int("deletes", len(batch.Deletes)).
		Int("puts", len(batch.Puts)).
		Msg("Batch committed")
	return nil
}

func (b *Backend) Namespaces(ctx context.Context) (map[string]string, error) {
	m, err := b.client.HGetAll(ctx, b.namespacesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load namespaces: %w", err)
	}
	return m, nil
}

func (b *Backend) RegisterNamespace(ctx context.Context, prefix, uri string) error {
	if err := b.client.HSet(ctx, b.namespacesKey(), prefix, uri).Err(); err != nil {
		return fmt.Errorf("failed to register namespace: %w", err)
	}
	return nil
}

// Drop removes every key under the backend prefix
func (b *Backend) Drop(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.prefix+":*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := b.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (b *Backend) Close() error {
	return b.client.Close()
}
