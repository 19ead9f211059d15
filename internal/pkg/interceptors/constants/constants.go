package constants

// contextKey keeps keys from colliding with other packages' string keys.
type contextKey string

const (
	// HeaderXRequestID is used both as the HTTP header and the gRPC metadata key.
	HeaderXRequestID = "x-request-id"
	// HeaderIdempotencyKey is the HTTP header that makes create_order replayable.
	HeaderIdempotencyKey = "Idempotency-Key"

	ContextKeyRequestID contextKey = HeaderXRequestID
)
