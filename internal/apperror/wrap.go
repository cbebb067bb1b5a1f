package apperror

import (
	"context"
	"errors"
	"fmt"
)

// Call выполняет fn и пропускает любую её ошибку (в том числе панику)
// через классификатор c с контекстом meta. Ошибки, уже выпущенные c,
// и коды RaiseCode возвращаются как есть, чтобы вложенные вызовы
// не классифицировали одну ошибку дважды.
func Call[T any](ctx context.Context, c *Classifier, meta Context, fn func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = c.Transform(panicError(r), meta)
		}
	}()

	result, err = fn(ctx)
	if err != nil {
		var zero T
		return zero, classify(c, err, meta)
	}
	return result, nil
}

// Exec — вариант Call для функций без результата.
func Exec(ctx context.Context, c *Classifier, meta Context, fn func(context.Context) error) error {
	_, err := Call(ctx, c, meta, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Guard — синхронный вариант для функций без контекста.
func Guard(c *Classifier, meta Context, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = c.Transform(panicError(r), meta)
		}
	}()
	if err = fn(); err != nil {
		return classify(c, err, meta)
	}
	return nil
}

func classify(c *Classifier, err error, meta Context) error {
	if _, ok := err.(CodeError); ok || c.Produced(err) {
		return err
	}
	return c.Transform(err, meta)
}

// panicError приводит значение паники к error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("паника: %w", err)
	}
	return errors.New(fmt.Sprint("паника: ", r))
}
