package recommend

import (
	"context"
	"errors"
)

// ErrNoContent is returned when a backend replies without any text.
var ErrNoContent = errors.New("recommend: model returned no content")

// Completer sends one system and user prompt pair to a model backend.
//
//go:generate mockgen -package=recommend_test -destination=mock_completer_test.go -source=completer.go Completer
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}
