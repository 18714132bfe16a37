package constants

// Redis Pub/Sub channels
const (
	// RedisChannelEvents carries every domain event as JSON.
	RedisChannelEvents = "library.events"
)

// Redis key prefixes
const (
	RedisKeyRevokedToken = "auth:revoked:"
	RedisKeyRateLimit    = "ratelimit:"
)
