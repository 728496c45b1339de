package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = fmt.Errorf("entity not found")
	ErrInvalidState = fmt.Errorf("invalid state")
	ErrConflict     = fmt.Errorf("concurrent mutation detected")

	ErrAlreadyExists            = fmt.Errorf("%w: entity already exists", ErrInvalidState)
	ErrAlreadyMemberOrInvited   = fmt.Errorf("%w: user is already a member or invited", ErrInvalidState)
	ErrNoSuchInvitation         = fmt.Errorf("%w: no such invitation", ErrInvalidState)
	ErrNotMember                = fmt.Errorf("%w: user is not a member of the conversation", ErrInvalidState)
	ErrNotEnoughMembers         = fmt.Errorf("%w: a conversation needs at least one other member", ErrInvalidState)
	ErrEmptyName                = fmt.Errorf("%w: name cannot be empty", ErrInvalidState)
	ErrEmptyTopic               = fmt.Errorf("%w: topic cannot be empty", ErrInvalidState)
	ErrAlreadyAuthored          = fmt.Errorf("%w: message already authored", ErrInvalidState)
	ErrNotAuthored              = fmt.Errorf("%w: message not authored yet", ErrInvalidState)
	ErrMediaAlreadyAttached     = fmt.Errorf("%w: media already attached", ErrInvalidState)
	ErrMessageNotInConversation = fmt.Errorf("%w: message does not belong to the conversation", ErrInvalidState)
	ErrMediaTooLarge            = fmt.Errorf("%w: media exceeds the allowed size", ErrInvalidState)
	ErrUnsupportedMedia         = fmt.Errorf("%w: unsupported media type", ErrInvalidState)
	ErrInvalidRequest           = fmt.Errorf("%w: invalid request", ErrInvalidState)

	ErrTransportClosed        = fmt.Errorf("transport closed")
	ErrOutboxOverflow         = fmt.Errorf("%w: delivery queue limit exceeded", ErrTransportClosed)
	ErrObserverFailure        = fmt.Errorf("observer failure")
	ErrInconsistentMembership = fmt.Errorf("membership views diverged")
	ErrWorkerPanic            = fmt.Errorf("worker panic")

	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrTokenGeneration    = fmt.Errorf("failed to generate token")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
)

// Is, As and Join forward to the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }

// MapToHTTPStatus translates the error taxonomy into an HTTP status code.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict
	case stderrors.Is(err, ErrInvalidToken), stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrTransportClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
