package api

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/x12keeper/internal/logger"
	"github.com/solatis/x12keeper/internal/types"
)

// Auth errors are mapped in the auth interceptor. Everything returned by a
// handler passes through toStatus.
var statusCodes = []struct {
	err  error
	code codes.Code
}{
	{types.ErrFieldNotFound, codes.NotFound},
	{types.ErrDocumentNotFound, codes.NotFound},
	{types.ErrIndexOutOfRange, codes.OutOfRange},
	{types.ErrEmptySegmentID, codes.InvalidArgument},
	{types.ErrInvalidIndex, codes.InvalidArgument},
	{types.ErrCoercionFailed, codes.InvalidArgument},
	{types.ErrInvalidSchema, codes.InvalidArgument},
	{types.ErrTooManySegments, codes.InvalidArgument},
	{types.ErrEmptyDocument, codes.InvalidArgument},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
	{context.Canceled, codes.Canceled},
}

// toStatus converts a domain error to a gRPC status error. Unrecognized
// errors are storage failures and map to UNAVAILABLE.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return status.Error(sc.code, err.Error())
		}
	}

	logger.FromContext(ctx).Error("storage failure", zap.Error(err))
	return status.Error(codes.Unavailable, err.Error())
}

func invalidArgument(format string, args ...interface{}) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}
