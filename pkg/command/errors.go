package command

import (
	"errors"
	"fmt"

	"github.com/bft-labs/taverna/pkg/authz"
)

var (
	ErrInvalidCommand   = errors.New("command: invalid command")
	ErrDuplicateCommand = errors.New("command: duplicate command")
	ErrUnknownCommand   = errors.New("command: unknown command")
	ErrMissingOption    = errors.New("command: missing option")
	ErrHandlerPanic     = errors.New("command: handler panicked")
)

// User-facing replies.
const (
	MessagePrivateContext = "Questo comando non può essere usato nei messaggi privati."
	MessageNoPermission   = "❌ Non hai i permessi per usare questo comando"
	MessageUnknownCommand = "Comando sconosciuto."
	MessageInternalError  = "Si è verificato un errore durante l'esecuzione del comando."
)

// DeniedError is returned when the authorization gate rejects an invocation.
type DeniedError struct {
	Command string
	Reason  authz.Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("command %s denied: %s", e.Command, e.Reason)
}

// Unwrap exposes the authz sentinel matching the reason.
func (e *DeniedError) Unwrap() error {
	return authz.Decision{Reason: e.Reason}.Err()
}

// OptionError reports a missing or malformed option.
type OptionError struct {
	Name string
	Err  error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %s: %v", e.Name, e.Err)
}

func (e *OptionError) Unwrap() error { return e.Err }

// UserMessage converts a pipeline error into the text shown to the invoker.
func UserMessage(err error) string {
	var optErr *OptionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, authz.ErrPrivateContext):
		return MessagePrivateContext
	case errors.Is(err, authz.ErrNoPermission):
		return MessageNoPermission
	case errors.Is(err, ErrUnknownCommand):
		return MessageUnknownCommand
	case errors.As(err, &optErr):
		return fmt.Sprintf("Parametro non valido: %s", optErr.Name)
	default:
		return MessageInternalError
	}
}
