package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts domain and infra errors into gRPC-friendly status errors.
// Keeps callers of the service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var insufficient *InsufficientBalanceError
	var validation *ValidationError

	switch {
	case errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, validation.Msg)

	case errors.As(err, &insufficient):
		return status.Error(codes.FailedPrecondition, insufficient.Error())

	case errors.Is(err, ErrBlocked), errors.Is(err, ErrInactiveUser), errors.Is(err, ErrSelfTarget):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrConversationNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error directly.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// PermissionDenied creates a gRPC PermissionDenied error directly.
func PermissionDenied(msg string) error {
	return status.Error(codes.PermissionDenied, msg)
}

// NotFound creates a gRPC NotFound error directly.
func NotFound(msg string) error {
	return status.Error(codes.NotFound, msg)
}

// FailedPrecondition creates a gRPC FailedPrecondition error directly.
func FailedPrecondition(msg string) error {
	return status.Error(codes.FailedPrecondition, msg)
}
