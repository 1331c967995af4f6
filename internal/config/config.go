package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port               int
	NatsURL            string
	NatsToken          string
	DatabaseURL        string
	LogLevel           string
	APIToken           string
	S3Bucket           string
	S3Region           string
	S3RecordingPrefix  string
	RecordingURLTTLSec int
}

func Load() Config {
	return Config{
		Port:               envInt("OUTDIAL_PORT", 8720),
		NatsURL:            envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:          envStr("NATS_TOKEN", ""),
		DatabaseURL:        envStr("DATABASE_URL", ""),
		LogLevel:           envStr("LOG_LEVEL", "info"),
		APIToken:           envStr("OUTDIAL_API_TOKEN", ""),
		S3Bucket:           envStr("S3_BUCKET_NAME", ""),
		S3Region:           envStr("S3_REGION", "us-east-1"),
		S3RecordingPrefix:  envStr("S3_RECORDING_PREFIX", "call-recordings"),
		RecordingURLTTLSec: envInt("RECORDING_URL_TTL_SECONDS", 3600),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
