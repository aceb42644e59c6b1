package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds engine and server settings read from the environment.
// Database settings stay in the db package, which builds its own DSN.
type Config struct {
	HTTPAddr string
	// AMQPURL enables the cross-process event relay when set. Empty means
	// single-process operation, broadcasts stay local.
	AMQPURL string
	// PreventSelfOutbid toggles the policy that rejects a bid from the
	// bidder currently holding the highest bid.
	PreventSelfOutbid bool
	// SinkQueueSize bounds the asynchronous persistence queue.
	SinkQueueSize int
}

func Load() Config {
	_ = godotenv.Load()
	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":9000"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		PreventSelfOutbid: getEnvBool("PREVENT_SELF_OUTBID", true),
		SinkQueueSize:     getEnvInt("SINK_QUEUE_SIZE", 1024),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
