package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorTextBadInput          = "ENTITLEMENTS_BAD_INPUT"
	ErrorTextRemoteRejected    = "ENTITLEMENTS_REMOTE_REJECTED"
	ErrorTextRemoteNotFound    = "ENTITLEMENTS_REMOTE_NOT_FOUND"
	ErrorTextRemoteUnavailable = "ENTITLEMENTS_REMOTE_UNAVAILABLE"
	ErrorTextBatchFailed       = "ENTITLEMENTS_BATCH_FAILED"
	ErrorTextTaskFailed        = "ENTITLEMENTS_TASK_FAILED"
	ErrorTextInternal          = "ENTITLEMENTS_INTERNAL_ERROR"
)

var (
	ErrBlankResourceGroupItem = errors.New("core: resource group items cannot contain blank identifiers")
	ErrAgreementIDRequired    = errors.New("core: agreement id is required")
	ErrUnknownGroupReference  = errors.New("core: unknown group reference")
	ErrInvalidDesiredState    = errors.New("core: invalid desired state")
	ErrMissingRemoteID        = errors.New("core: remote returned no identifier")
)

type RemoteErrorKind int

const (
	RemoteErrorUnknown RemoteErrorKind = iota
	RemoteErrorRejected
	RemoteErrorNotFound
	RemoteErrorUnavailable
)

func (k RemoteErrorKind) String() string {
	switch k {
	case RemoteErrorRejected:
		return "rejected"
	case RemoteErrorNotFound:
		return "not_found"
	case RemoteErrorUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// RemoteErrorKindForStatus classifies an HTTP status returned by the backend.
func RemoteErrorKindForStatus(status int) RemoteErrorKind {
	switch {
	case status == http.StatusNotFound:
		return RemoteErrorNotFound
	case status >= 400 && status < 500:
		return RemoteErrorRejected
	case status >= 500:
		return RemoteErrorUnavailable
	default:
		return RemoteErrorUnknown
	}
}

// RemoteError is the tagged failure returned from the client boundary.
type RemoteError struct {
	Kind       RemoteErrorKind
	Operation  string
	StatusCode int
	Body       string
	Cause      error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "core: remote error"
	}
	msg := fmt.Sprintf("core: remote %s %s", strings.TrimSpace(e.Operation), e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// remoteID trims id and classifies an empty one as an unknown remote failure.
func remoteID(operation string, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &RemoteError{Kind: RemoteErrorUnknown, Operation: operation, Cause: ErrMissingRemoteID}
	}
	return id, nil
}

func (e *RemoteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *RemoteError) ToServiceError() *goerrors.Error {
	if e == nil {
		return nil
	}
	category, textCode, code := goerrors.CategoryExternal, ErrorTextRemoteUnavailable, http.StatusBadGateway
	switch e.Kind {
	case RemoteErrorRejected:
		category, textCode, code = goerrors.CategoryBadInput, ErrorTextRemoteRejected, http.StatusBadRequest
	case RemoteErrorNotFound:
		category, textCode, code = goerrors.CategoryNotFound, ErrorTextRemoteNotFound, http.StatusNotFound
	case RemoteErrorUnavailable, RemoteErrorUnknown:
	}
	if e.StatusCode > 0 {
		code = e.StatusCode
	}
	rich := goerrors.New(e.Error(), category).
		WithCode(code).
		WithTextCode(textCode)
	rich.WithMetadata(map[string]any{
		"operation": strings.TrimSpace(e.Operation),
		"kind":      e.Kind.String(),
		"body":      strings.TrimSpace(e.Body),
	})
	return rich
}

// RemoteKind reports the remote failure kind carried by err, if any.
func RemoteKind(err error) (RemoteErrorKind, bool) {
	var remote *RemoteError
	if errors.As(err, &remote) && remote != nil {
		return remote.Kind, true
	}
	return RemoteErrorUnknown, false
}

func RemoteBody(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) && remote != nil {
		return strings.TrimSpace(remote.Body)
	}
	return ""
}

// TaskError is the single failure type surfaced by engine operations.
type TaskError struct {
	Task        string
	Domain      string
	Action      string
	AgreementID string
	ResourceID  string
	Message     string
	Body        string
	Cause       error
}

func (e *TaskError) Error() string {
	if e == nil {
		return "core: task failed"
	}
	parts := []string{"core:"}
	if task := strings.TrimSpace(e.Task); task != "" {
		parts = append(parts, "task "+task+":")
	}
	parts = append(parts, strings.TrimSpace(e.Message))
	msg := strings.Join(parts, " ")
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TaskError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *TaskError) ToServiceError() *goerrors.Error {
	if e == nil {
		return nil
	}
	category, textCode, code := goerrors.CategoryOperation, ErrorTextTaskFailed, http.StatusUnprocessableEntity
	if kind, ok := RemoteKind(e.Cause); ok {
		switch kind {
		case RemoteErrorRejected:
			category, textCode, code = goerrors.CategoryBadInput, ErrorTextRemoteRejected, http.StatusBadRequest
		case RemoteErrorNotFound:
			category, textCode, code = goerrors.CategoryNotFound, ErrorTextRemoteNotFound, http.StatusNotFound
		case RemoteErrorUnavailable, RemoteErrorUnknown:
			category, textCode, code = goerrors.CategoryExternal, ErrorTextRemoteUnavailable, http.StatusBadGateway
		}
	}
	var batchErr *BatchError
	switch {
	case isInvalidInput(e.Cause):
		category, textCode, code = goerrors.CategoryBadInput, ErrorTextBadInput, http.StatusBadRequest
	case errors.As(e.Cause, &batchErr):
		category, textCode, code = goerrors.CategoryOperation, ErrorTextBatchFailed, http.StatusMultiStatus
	}
	rich := goerrors.New(e.Error(), category).
		WithCode(code).
		WithTextCode(textCode)
	rich.WithMetadata(map[string]any{
		"task":         strings.TrimSpace(e.Task),
		"domain":       strings.TrimSpace(e.Domain),
		"action":       strings.TrimSpace(e.Action),
		"agreement_id": strings.TrimSpace(e.AgreementID),
		"resource_id":  strings.TrimSpace(e.ResourceID),
	})
	return rich
}

// isInvalidInput reports whether err stems from the caller's desired state
// rather than from the remote system.
func isInvalidInput(err error) bool {
	return errors.Is(err, ErrBlankResourceGroupItem) ||
		errors.Is(err, ErrAgreementIDRequired) ||
		errors.Is(err, ErrUnknownGroupReference) ||
		errors.Is(err, ErrInvalidDesiredState)
}

// BatchError reports a batch call where at least one item failed.
type BatchError struct {
	Operation string
	Total     int
	Failed    []BatchOutcome
}

func (e *BatchError) Error() string {
	if e == nil {
		return "core: batch failed"
	}
	details := make([]string, 0, len(e.Failed))
	for _, outcome := range e.Failed {
		detail := fmt.Sprintf("%s[%s]", strings.TrimSpace(outcome.ResourceID), outcome.Status)
		if len(outcome.Errors) > 0 {
			detail += " " + strings.Join(outcome.Errors, "; ")
		}
		details = append(details, detail)
	}
	return fmt.Sprintf(
		"core: %s: %d of %d batch items failed: %s",
		strings.TrimSpace(e.Operation),
		len(e.Failed),
		e.Total,
		strings.Join(details, ", "),
	)
}

func (e *BatchError) ToServiceError() *goerrors.Error {
	if e == nil {
		return nil
	}
	rich := goerrors.New(e.Error(), goerrors.CategoryOperation).
		WithCode(http.StatusMultiStatus).
		WithTextCode(ErrorTextBatchFailed)
	rich.WithMetadata(map[string]any{
		"operation": strings.TrimSpace(e.Operation),
		"total":     e.Total,
		"failed":    len(e.Failed),
	})
	return rich
}

type serviceErrorConverter interface {
	ToServiceError() *goerrors.Error
}

// MapError converts any engine error into a go-errors envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	var converter serviceErrorConverter
	if errors.As(err, &converter) {
		if mapped := converter.ToServiceError(); mapped != nil {
			return ensureErrorEnvelope(mapped)
		}
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = errorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultErrorTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultErrorTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorTextBadInput
	case goerrors.CategoryNotFound:
		return ErrorTextRemoteNotFound
	case goerrors.CategoryExternal:
		return ErrorTextRemoteUnavailable
	case goerrors.CategoryOperation:
		return ErrorTextTaskFailed
	default:
		return ErrorTextInternal
	}
}

func errorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
