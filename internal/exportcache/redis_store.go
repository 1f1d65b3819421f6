// Package exportcache caches byte-stable export results in Redis.
//
// Only the deterministic formats (txt, html and the copy-paste variants)
// are cached: exporting an unchanged plan twice produces byte-identical
// output for those, so the rendered blob can be reused. PDF embeds a
// generation timestamp and is never cached.
package exportcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fsawadogo/sqordia-sub000/internal/export"
)

const defaultTTL = 15 * time.Minute

// Store is a Redis-backed cache of rendered export results.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a Redis-backed export cache.
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient creates a cache from an existing Redis client.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: "export:", ttl: defaultTTL}
}

// Cacheable reports whether results for the format may be cached.
func Cacheable(format export.Format) bool {
	return format != export.FormatPDF
}

// Key derives the cache key for one (plan, options, content version)
// combination. contentVersion should change whenever the plan or any of its
// sections changes; the plan's updated_at timestamp serves that role.
func Key(planID string, opts export.Options, contentVersion time.Time) string {
	ids := append([]string(nil), opts.SectionIDs...)
	sort.Strings(ids)
	raw := strings.Join([]string{
		planID,
		string(opts.Format),
		strconv.FormatBool(opts.IncludeTitlePage),
		strconv.FormatBool(opts.IncludeTOC),
		strconv.FormatBool(opts.IncludePageNumbers),
		strings.Join(ids, ","),
		strconv.FormatInt(contentVersion.UnixNano(), 10),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

type cachedResult struct {
	Data     []byte `json:"data"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

// Get returns the cached result for key, or nil on a miss.
func (s *Store) Get(ctx context.Context, key string) (*export.Result, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &export.Result{Data: cached.Data, Filename: cached.Filename, MimeType: cached.MimeType}, nil
}

// Put stores a result under key with the cache TTL.
func (s *Store) Put(ctx context.Context, key string, result *export.Result) error {
	data, err := json.Marshal(cachedResult{
		Data:     result.Data,
		Filename: result.Filename,
		MimeType: result.MimeType,
	})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
