package server

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/x12keeper/internal/logger"
)

// LoggingInterceptor attaches a method-scoped logger to the request context
// and logs one line per call.
func LoggingInterceptor(base *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		reqLogger := base.With(zap.String("method", info.FullMethod))
		ctx = logger.ContextWithLogger(ctx, reqLogger)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		reqLogger.Check(levelFor(code), "grpc request").Write(
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return resp, err
	}
}

// levelFor logs client mistakes at info and server-side failures at error.
func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK, codes.NotFound, codes.OutOfRange, codes.InvalidArgument,
		codes.Unauthenticated, codes.PermissionDenied, codes.Canceled:
		return zapcore.InfoLevel
	case codes.DeadlineExceeded:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
