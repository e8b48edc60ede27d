package authorization

import (
	"context"
	"errors"
)

type Service interface {
	// Authorize checks that actor, acting as role, may perform action on object.
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

type Actor struct {
	// Subject identifies the caller, e.g. "api_key:3f9a1c2b".
	Subject string
	Role    string
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
