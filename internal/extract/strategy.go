package extract

import (
	"context"
	"errors"
	"fmt"
)

// ErrInsufficient is returned by a strategy that produced no usable text.
var ErrInsufficient = errors.New("insufficient text")

// Strategy is one way of turning document bytes into text.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, content []byte) (string, error)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc struct {
	Label string
	Fn    func(ctx context.Context, content []byte) (string, error)
}

func (s StrategyFunc) Name() string { return s.Label }

func (s StrategyFunc) Attempt(ctx context.Context, content []byte) (string, error) {
	return s.Fn(ctx, content)
}

// runStrategy converts panics from third-party parsers into errors.
func runStrategy(ctx context.Context, s Strategy, content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%s panicked: %v", s.Name(), r)
		}
	}()
	return s.Attempt(ctx, content)
}
