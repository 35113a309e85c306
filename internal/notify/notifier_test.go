package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"workflows/internal/domain"
)

func TestEmitDeliversInOrder(t *testing.T) {
	n := NewNotifier()
	var got []string

	n.Subscribe(HandlerFunc(func(ctx context.Context, event domain.Event) error {
		got = append(got, "first:"+event.Kind())
		return nil
	}))
	n.Subscribe(HandlerFunc(func(ctx context.Context, event domain.Event) error {
		got = append(got, "second:"+event.Kind())
		return nil
	}))

	n.Emit(context.Background(),
		domain.TaskCreatedEvent{TaskID: uuid.New()},
		domain.TaskFinishedEvent{TaskID: uuid.New()},
	)

	assert.Equal(t, []string{
		"first:task_created", "second:task_created",
		"first:task_finished", "second:task_finished",
	}, got)
}

func TestEmitIsolatesFailingHandlers(t *testing.T) {
	n := NewNotifier()
	var delivered int

	n.Subscribe(HandlerFunc(func(ctx context.Context, event domain.Event) error {
		return errors.New("broker down")
	}))
	n.Subscribe(HandlerFunc(func(ctx context.Context, event domain.Event) error {
		panic("handler bug")
	}))
	n.Subscribe(HandlerFunc(func(ctx context.Context, event domain.Event) error {
		delivered++
		return nil
	}))

	assert.NotPanics(t, func() {
		n.Emit(context.Background(), domain.JobFinishedEvent{JobID: uuid.New()})
	})
	assert.Equal(t, 1, delivered, "failures of earlier handlers never block later ones")
}

func TestEmitWithoutHandlers(t *testing.T) {
	n := NewNotifier()
	assert.NotPanics(t, func() {
		n.Emit(context.Background(), domain.TaskCreatedEvent{TaskID: uuid.New()})
	})
}
