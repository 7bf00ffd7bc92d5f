package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/ecm-core/internal/errs"
)

// ErrorDomain is set on every ErrorInfo detail returned by the server.
const ErrorDomain = "ecm.core"

type mapping struct {
	target error
	code   codes.Code
	reason string
}

// Order matters: ErrProviderNotFound wraps ErrNotFound.
var mappings = []mapping{
	{errs.ErrValidation, codes.InvalidArgument, "VALIDATION"},
	{errs.ErrProviderNotFound, codes.NotFound, "PROVIDER_NOT_FOUND"},
	{errs.ErrNotFound, codes.NotFound, "NOT_FOUND"},
	{errs.ErrVersionConflict, codes.FailedPrecondition, "VERSION_CONFLICT"},
	{errs.ErrAlreadyExists, codes.AlreadyExists, "ALREADY_EXISTS"},
	{errs.ErrNoCompatibleProvider, codes.FailedPrecondition, "NO_COMPATIBLE_PROVIDER"},
	{errs.ErrConfiguration, codes.FailedPrecondition, "CONFIGURATION"},
	{errs.ErrUnauthorized, codes.Unauthenticated, "UNAUTHENTICATED"},
	{context.DeadlineExceeded, codes.DeadlineExceeded, "DEADLINE_EXCEEDED"},
	{context.Canceled, codes.Canceled, "CANCELED"},
}

// toStatus maps service errors onto gRPC status codes with an ErrorInfo detail.
// Unknown errors become Internal without leaking their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code, reason, msg := codes.Internal, "INTERNAL", "internal"
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			code, reason, msg = m.code, m.reason, err.Error()
			break
		}
	}

	st := status.New(code, msg)
	withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain})
	if derr != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// Reason extracts the ErrorInfo reason of a status error, or "".
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
