// Package redis establishes and health-checks the Redis connection used for
// sessions and rate-limit counters. Connect parses a connection URL from
// Config, retries until the server answers a ping, and returns a ready
// go-redis client.
package redis
