package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the API.

// ErrValidation indicates caller-supplied data is malformed or missing.
type ErrValidation struct {
	Fields  []string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Dados obrigatórios ausentes: %s", strings.Join(e.Fields, ", "))
}

// ErrConfiguration indicates a required deployment setting is absent.
type ErrConfiguration struct {
	Setting string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("%s não configurado", e.Setting)
}

// ErrNotFound indicates a resource was not found. ID is kept for logs and
// stays out of the message.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s não encontrado", e.Resource)
}

// ErrStore indicates the persistence call failed. Message is the store's own text.
type ErrStore struct {
	Op  string
	Err error
}

func (e *ErrStore) Error() string {
	return e.Err.Error()
}

func (e *ErrStore) Unwrap() error {
	return e.Err
}

// ErrNotifierFailure indicates the webhook could not be reached (transport error or timeout).
type ErrNotifierFailure struct {
	Message string
}

func (e *ErrNotifierFailure) Error() string {
	return e.Message
}

// ErrNotifierRejection indicates the webhook answered with a non-2xx status.
type ErrNotifierRejection struct {
	StatusCode int
	Body       string
}

func (e *ErrNotifierRejection) Error() string {
	return fmt.Sprintf("n8n respondeu %d: %s", e.StatusCode, e.Body)
}
