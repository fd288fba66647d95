package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Env struct {
	AppPort           string        `validate:"required,numeric"`
	AppEnv            string        `validate:"omitempty,oneof=development production test"`
	UploadDir         string        `validate:"required_if=StorageDriver local"`
	StorageDriver     string        `validate:"required,oneof=local s3"`
	UploadMaxBytes    int64         `validate:"gt=0"`
	ProcessingTimeout time.Duration `validate:"gt=0"`
	CacheTTL          time.Duration `validate:"gte=0"`
	UploadRate        float64       `validate:"gt=0"`
	UploadBurst       int           `validate:"gt=0"`
	DBHost            string
	RedisAddress      string
	FastSAMModelPath  string
}

func LoadEnv(v *validator.Validate) (*Env, error) {
	env := &Env{
		AppPort:          getString("APP_PORT", "5000"),
		AppEnv:           os.Getenv("APP_ENV"),
		UploadDir:        getString("UPLOAD_DIR", "uploads"),
		StorageDriver:    getString("STORAGE_DRIVER", "local"),
		DBHost:           os.Getenv("DB_HOST"),
		RedisAddress:     os.Getenv("REDIS_ADDRESS"),
		FastSAMModelPath: getString("FASTSAM_MODEL_PATH", "FastSAM-x.pt"),
	}

	var err error
	if env.UploadMaxBytes, err = getInt64("UPLOAD_MAX_BYTES", 10*1024*1024); err != nil {
		return nil, err
	}
	if env.ProcessingTimeout, err = getDuration("PROCESSING_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if env.CacheTTL, err = getDuration("CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if env.UploadRate, err = getFloat("UPLOAD_RATE", 5); err != nil {
		return nil, err
	}
	burst, err := getInt64("UPLOAD_BURST", 10)
	if err != nil {
		return nil, err
	}
	env.UploadBurst = int(burst)

	if err := v.Struct(env); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	return env, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
