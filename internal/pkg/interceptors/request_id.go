package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/jcmexdev/gym-membership/internal/pkg/interceptors/constants"
)

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyRequestID, id)
}

// RequestIDFromContext returns the id set by WithRequestID, falling back to
// incoming gRPC metadata. It returns "" when neither is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok {
		return id
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(constants.HeaderXRequestID); len(ids) > 0 {
			return ids[0]
		}
	}
	return ""
}

// RequestIDServerInterceptor takes the caller's x-request-id, or mints one,
// and makes it available through RequestIDFromContext.
func RequestIDServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		id := RequestIDFromContext(ctx)
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(constants.HeaderXRequestID, id))
		return handler(WithRequestID(ctx, id), req)
	}
}
