package transport

import (
	"strings"

	"github.com/goliatone/go-entitlements/core"
	goerrors "github.com/goliatone/go-errors"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorTextBadInput
	case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
		return core.ErrorTextRemoteUnavailable
	default:
		return core.ErrorTextInternal
	}
}

// statusError classifies a non-2xx response at the client boundary.
func statusError(operation string, res Response) error {
	return &core.RemoteError{
		Kind:       core.RemoteErrorKindForStatus(res.StatusCode),
		Operation:  operation,
		StatusCode: res.StatusCode,
		Body:       strings.TrimSpace(string(res.Body)),
	}
}

// callError wraps a failure that happened before a response was read.
func callError(operation string, err error) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil && rich.Category == goerrors.CategoryBadInput {
		return err
	}
	return &core.RemoteError{
		Kind:      core.RemoteErrorUnavailable,
		Operation: operation,
		Cause:     err,
	}
}
