package domain

import (
	"errors"
	"sort"
	"strings"
)

// ErrValidation es la causa por defecto de un ValidationError sin sentinel propio.
var ErrValidation = errors.New("validation failed")

// ValidationError agrupa los errores de entrada por campo.
// Unwrap devuelve el sentinel del dominio (ej. ErrInvalidTask) para usar errors.Is.
type ValidationError struct {
	Base   error
	Fields map[string]string
}

// NewValidationError crea un error vacío asociado al sentinel base.
func NewValidationError(base error) *ValidationError {
	if base == nil {
		base = ErrValidation
	}
	return &ValidationError{Base: base, Fields: make(map[string]string)}
}

// Add registra un mensaje para un campo; el primero gana.
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// HasErrors indica si algún campo falló.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil devuelve el error sólo si tiene campos, para poder hacer `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Base.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Base
}
