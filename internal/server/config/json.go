package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/galleryselect/internal/flagx"
	"github.com/dmitrijs2005/galleryselect/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// files may say "10s" or give nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	StoreBackend                 string         `json:"store_backend"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	StudioAPIKey                 string         `json:"studio_api_key"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	LockTTL                      timex.Duration `json:"lock_ttl"`
	LockWait                     timex.Duration `json:"lock_wait"`
	AMQPURL                      string         `json:"amqp_url"`
	NotificationQueue            string         `json:"notification_queue"`
	NotifyWorkers                int            `json:"notify_workers"`
	NotifyQueueSize              int            `json:"notify_queue_size"`
	AllowedOrigins               []string       `json:"allowed_origins"`
}

// parseJson loads the file named by -c or -config and copies every field
// it sets into config. Without the flag nothing happens. An unreadable
// file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.StudioAPIKey, c.StudioAPIKey)
	if c.SessionTokenValidityDuration.Duration > 0 {
		config.SessionTokenValidityDuration = c.SessionTokenValidityDuration.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.LockTTL.Duration > 0 {
		config.LockTTL = c.LockTTL.Duration
	}
	if c.LockWait.Duration > 0 {
		config.LockWait = c.LockWait.Duration
	}
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.NotificationQueue, c.NotificationQueue)
	if c.NotifyWorkers > 0 {
		config.NotifyWorkers = c.NotifyWorkers
	}
	if c.NotifyQueueSize > 0 {
		config.NotifyQueueSize = c.NotifyQueueSize
	}
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
