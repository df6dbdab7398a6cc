package match

import "errors"

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrInvalidParam = errors.New("the param is invalid")
	ErrInternal     = errors.New("internal server error")
	ErrTimeout      = errors.New("timeout")
	ErrShutdown     = errors.New("engine is shutting down")
	ErrNotFound     = errors.New("not found")
)
