package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string       HTTP bind address (e.g., ":8080")
//	-grpc string    gRPC health endpoint bind address
//	-store string   store backend, "postgres" or "memory"
//	-d string       PostgreSQL DSN
//	-s string       JWT HMAC secret key
//	-studio-key     shared key exchanged for studio tokens
//	-t int          session token validity, minutes
//	-u string       S3 root user
//	-p string       S3 root password
//	-b string       S3 bucket name
//	-g string       S3 region
//	-e string       S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-redis string   Redis address for distributed locks
//	-amqp string    RabbitMQ URL for notifications
//	-origins string comma separated CORS origins
//
// Only these flags are taken from os.Args, via flagx.FilterArgs.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-grpc", "-store", "-d", "-s", "-studio-key", "-t", "-u", "-p", "-b", "-g", "-e", "-redis", "-amqp", "-origins",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run the HTTP API")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "address and port to run the gRPC health endpoint")
	fs.StringVar(&config.StoreBackend, "store", config.StoreBackend, "store backend (postgres|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.StudioAPIKey, "studio-key", config.StudioAPIKey, "studio api key")

	sessionTokenValidity := fs.Int("t", int(config.SessionTokenValidityDuration.Minutes()), "session_token_validity_duration (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address for locks")
	fs.StringVar(&config.AMQPURL, "amqp", config.AMQPURL, "RabbitMQ URL for notifications")

	origins := fs.String("origins", strings.Join(config.AllowedOrigins, ","), "comma separated CORS origins")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTokenValidityDuration = time.Duration(*sessionTokenValidity) * time.Minute
	config.AllowedOrigins = splitList(*origins)
}
