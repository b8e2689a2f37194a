package gourmet

import (
	"context"
	"errors"
	"fmt"

	"mealody/internal/hotpepper"
)

var (
	ErrNetwork      = errors.New("network failure")
	ErrDecode       = errors.New("decode failure")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failure")
)

// classify：把传输层错误归入本包的错误类别，保留原始错误链
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrDecode), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidState):
		return err
	case errors.Is(err, hotpepper.ErrTransport),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, hotpepper.ErrMissingKey):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	case errors.Is(err, hotpepper.ErrDecode):
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	var ae *hotpepper.APIError
	if errors.As(err, &ae) {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
