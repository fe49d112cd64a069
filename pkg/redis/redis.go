package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"RoomDetection/pkg/pipeline"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix  = "rooms:result:"
	DefaultTTL = time.Hour
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IResultCache stores assembled detection results keyed by image content and
// the options used to produce them.
type IResultCache interface {
	GetResult(ctx context.Context, key string) (*pipeline.Result, bool, error)
	SetResult(ctx context.Context, key string, result *pipeline.Result) error
	Close() error
}

type Config struct {
	Address     string
	Password    string
	DB          int
	TTL         time.Duration
	DialTimeout time.Duration
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// New connects to Redis when an address is configured. Without one the
// returned cache stores nothing.
func New(cfg Config, log *logrus.Logger) IResultCache {
	if cfg.Address == "" {
		log.Info("Redis address not configured, result cache disabled")
		return Disabled()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	log.Info(fmt.Sprintf("Connecting to Redis at %s...", cfg.Address))

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client, ttl: cfg.TTL, log: log}
}

// ResultKey derives the cache key for an image processed with opts. Name
// hints are part of the key since they appear in the result.
func ResultKey(image []byte, opts pipeline.Options) string {
	h := sha256.New()
	h.Write(image)
	h.Write([]byte("|" + strconv.FormatFloat(opts.Threshold, 'g', -1, 64)))
	h.Write([]byte("|" + strconv.FormatFloat(opts.OverlapThreshold, 'g', -1, 64)))
	h.Write([]byte("|" + strconv.FormatFloat(opts.EpsilonRatio, 'g', -1, 64)))
	if len(opts.NameHints) > 0 {
		hints, _ := json.Marshal(opts.NameHints)
		h.Write([]byte("|"))
		h.Write(hints)
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (r *redisClient) GetResult(ctx context.Context, key string) (*pipeline.Result, bool, error) {
	r.log.Debug(fmt.Sprintf("Getting cached result for key %s", key))
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	var result pipeline.Result
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &result, true, nil
}

func (r *redisClient) SetResult(ctx context.Context, key string, result *pipeline.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		return err
	}
	r.log.Debug(fmt.Sprintf("Cached result for key %s with expiration %v", key, r.ttl))
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

// Disabled returns a cache that never stores anything.
func Disabled() IResultCache {
	return noopCache{}
}

type noopCache struct{}

func (noopCache) GetResult(ctx context.Context, key string) (*pipeline.Result, bool, error) {
	return nil, false, nil
}

func (noopCache) SetResult(ctx context.Context, key string, result *pipeline.Result) error {
	return nil
}

func (noopCache) Close() error { return nil }
