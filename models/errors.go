package models

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError is a failure the caller is expected to see: a rejected rule or a missing entity.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// ValidationError rejects a request before any mutation.
func ValidationError(code, message string) *DomainError {
	return domainError(http.StatusBadRequest, code, message, nil)
}

// ForbiddenError rejects a request because the actor lacks the capability.
func ForbiddenError(code, message string) *DomainError {
	return domainError(http.StatusForbidden, code, message, nil)
}

// NotFoundError reports a missing issue, category or user.
func NotFoundError(entity string) *DomainError {
	return domainError(http.StatusNotFound, entity+"_not_found", entity+" not found", nil)
}

// AsDomainError unwraps err into a *DomainError when it is one.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ConflictError reports a write that kept losing to concurrent updates.
func ConflictError(code, message string) *DomainError {
	return domainError(http.StatusConflict, code, message, nil)
}
