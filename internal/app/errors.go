package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/fsawadogo/sqordia-sub000/internal/export"
)

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

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, export.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be one of pdf, html, txt, docx, pptx", nil
	}
	if errors.Is(err, export.ErrRasterization) || errors.Is(err, export.ErrSerialization) {
		return http.StatusInternalServerError, "EXPORT_FAILED", "Export failed", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
