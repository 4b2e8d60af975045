package app

import (
	"errors"
	"fmt"
	"net/http"

	"afropedia/api/internal/review"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindValidation       Kind = "validation"
	KindPermissionDenied Kind = "permission_denied"
	KindExternal         Kind = "external_service"
)

// Conflict codes callers can branch on.
const (
	CodeRevisionNotApproved = "REVISION_NOT_APPROVED"
	CodeHeadStale           = "HEAD_STALE"
	CodeQueueItemOpen       = "QUEUE_ITEM_OPEN"
	CodeReviewExists        = "REVIEW_EXISTS"
	CodeRevisionDecided     = "REVISION_DECIDED"
	CodeReviewCompleted     = "REVIEW_COMPLETED"
	CodeInvalidTransition   = "INVALID_TRANSITION"
)

type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// Status is the HTTP status for the error kind.
func (e *DomainError) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func domainError(kind Kind, code, message string, details any) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(entity string, id any) *DomainError {
	return domainError(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s %v not found", entity, id), nil)
}

func conflict(code, message string) *DomainError {
	return domainError(KindConflict, code, message, nil)
}

func forbidden(message string) *DomainError {
	return domainError(KindPermissionDenied, "FORBIDDEN", message, nil)
}

func invalid(field, message string) *DomainError {
	return domainError(KindValidation, "VALIDATION_ERROR", message, map[string]any{"field": field})
}

// validation converts field and enum errors from the domain packages.
func validation(err error) error {
	var fieldErr *review.FieldError
	if errors.As(err, &fieldErr) {
		return invalid(fieldErr.Field, fieldErr.Error())
	}
	var parseErr *workflow.ParseError
	if errors.As(err, &parseErr) {
		return invalid(parseErr.Kind, parseErr.Error())
	}
	return err
}

// storeError maps storage failures onto the error taxonomy. Domain errors
// raised inside a unit of work pass through untouched.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &DomainError{Kind: KindNotFound, Code: "NOT_FOUND", Message: op + ": not found", cause: err}
	case errors.Is(err, store.ErrDuplicate):
		return &DomainError{Kind: KindConflict, Code: "DUPLICATE", Message: op + ": already exists", cause: err}
	default:
		return &DomainError{Kind: KindExternal, Code: "STORAGE_ERROR", Message: op + " failed", cause: fmt.Errorf("%s: %w", op, err)}
	}
}

// lookup maps a keyed read, naming the entity on a miss.
func lookup(entity string, id any, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(entity, id)
	}
	return storeError("get "+entity, err)
}
