package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrNotConnected  = errors.New("websocket not connected")
	ErrMaxReconnects = errors.New("max reconnect attempts exhausted")
	ErrContextDone   = errors.New("context cancelled")
)
