package identity

import (
	"errors"
	"fmt"
)

// Provider error codes.
const (
	CodeEmailAlreadyInUse   = "auth/email-already-in-use"
	CodeWrongPassword       = "auth/wrong-password"
	CodeUserNotFound        = "auth/user-not-found"
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeWeakPassword        = "auth/weak-password"
	CodeInvalidEmail        = "auth/invalid-email"
	CodeOperationNotAllowed = "auth/operation-not-allowed"
)

// Error is a failure reported by an identity provider.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Category is the closed set of user-facing login failures.
type Category string

const (
	CategoryNone                   Category = ""
	CategoryEmailAlreadyRegistered Category = "email-already-registered"
	CategoryInvalidCredentials     Category = "invalid-credentials"
	CategoryWeakPassword           Category = "weak-password"
	CategoryUnknown                Category = "unknown"
)

// Classify maps err onto a Category. Wrong password, unknown user and generic
// invalid-credential failures share one category so the message does not reveal
// whether an email is registered. Anything unrecognized is CategoryUnknown.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var pe *Error
	if !errors.As(err, &pe) {
		return CategoryUnknown
	}
	switch pe.Code {
	case CodeEmailAlreadyInUse:
		return CategoryEmailAlreadyRegistered
	case CodeWrongPassword, CodeUserNotFound, CodeInvalidCredential:
		return CategoryInvalidCredentials
	case CodeWeakPassword:
		return CategoryWeakPassword
	default:
		return CategoryUnknown
	}
}

// Message returns the user-facing text for c.
func (c Category) Message() string {
	switch c {
	case CategoryNone:
		return ""
	case CategoryEmailAlreadyRegistered:
		return "Este correo ya está registrado."
	case CategoryInvalidCredentials:
		return "Correo o contraseña incorrectos."
	case CategoryWeakPassword:
		return "La contraseña debe tener al menos 6 caracteres."
	default:
		return "Ocurrió un error. Verifica tus datos."
	}
}
