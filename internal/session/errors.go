package session

import "errors"

var (
	ErrNotFound          = errors.New("session not found")
	ErrUnknownClientType = errors.New("unknown session client type")
	ErrEmptyID           = errors.New("session id is empty")
)
