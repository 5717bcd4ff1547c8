package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("not found")

	ErrTournamentNotFound = fmt.Errorf("tournament %w", ErrNotFound)
	ErrMatchNotFound      = fmt.Errorf("match %w", ErrNotFound)
	ErrMatchStateNotFound = fmt.Errorf("match state %w", ErrNotFound)
	ErrForwardNotFound    = fmt.Errorf("failed forward %w", ErrNotFound)

	// Ошибки валидации
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidResult    = errors.New("invalid result")

	// Ошибки конфликтов
	ErrTournamentConflict = errors.New("tournament id is claimed by another active tournament")

	// Доставка во внешнюю систему. Никогда не возвращается отправителю результата.
	ErrForwardingFailed = errors.New("forwarding to system of record failed")
)

// ValidationError carries the human-readable reason a result was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidResult, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidResult
}

func invalidResult(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
