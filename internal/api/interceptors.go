package api

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// grpcRequestID reuses the HTTP header name as metadata key.
var grpcRequestID = strings.ToLower(requestIDHeader)

// logUnary writes one line per call. Health probes arrive every few
// seconds, so successful ones are logged at trace level.
func logUnary(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := incomingRequestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(grpcRequestID, id))

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		ev := logger.Debug()
		switch {
		case code != codes.OK:
			ev = logger.Warn().Err(err)
		case strings.HasPrefix(info.FullMethod, "/grpc.health."):
			ev = logger.Trace()
		}
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			ev = ev.Str("remote", p.Addr.String())
		}
		ev.Str("request_id", id).
			Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("grpc call")
		return resp, err
	}
}

func recoverUnary(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Str("method", info.FullMethod).Msg("grpc handler panic")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, v := range md.Get(grpcRequestID) {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return uuid.NewString()
}
