package redis

import (
	"context"
	"errors"
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"os"
	"strconv"
	"time"
)

type IRedis interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Close() error
}

type redisClient struct {
	client *redis.Client
	log    *logrus.Logger
}

// New connects to REDIS_ADDRESS. It returns a nil cache and no error when no
// address is set so callers can run without a cache.
func New(log *logrus.Logger) (IRedis, error) {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		log.Info("REDIS_ADDRESS not set, result cache disabled")
		return nil, nil
	}

	db := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		var err error
		if db, err = strconv.Atoi(raw); err != nil || db < 0 {
			return nil, fmt.Errorf("invalid REDIS_DB %q", raw)
		}
	}

	log.Infof("Connecting to Redis at %s...", redisAddr)

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Errorf("Failed to connect to Redis: %v", err)
	} else {
		log.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client, log: log}, nil
}

func NewFromClient(client *redis.Client, log *logrus.Logger) IRedis {
	return &redisClient{client: client, log: log}
}

func (r *redisClient) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	r.log.Debugf("Getting cached value for key %s", key)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debugf("Cache miss for key %s", key)
		return false, nil
	} else if err != nil {
		r.log.Errorf("Error getting key %s: %v", key, err)
		return false, err
	}

	if err := jsoniter.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode cached value for %s: %w", key, err)
	}
	return true, nil
}

func (r *redisClient) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	payload, err := jsoniter.Marshal(value)
	if err != nil {
		return err
	}

	r.log.Debugf("Setting key %s with expiration %v", key, expiration)
	if err := r.client.Set(ctx, key, payload, expiration).Err(); err != nil {
		r.log.Errorf("Error setting key %s: %v", key, err)
		return err
	}
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
