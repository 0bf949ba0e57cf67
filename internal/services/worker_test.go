package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGroupPool_RunsEveryTask(t *testing.T) {
	t.Parallel()

	var done atomic.Int32
	tasks := make([]GroupTask, 20)
	for i := range tasks {
		tasks[i] = GroupTask{
			Name: fmt.Sprintf("task-%d", i),
			Run:  func(context.Context) { done.Add(1) },
		}
	}

	NewGroupPool(4).Run(context.Background(), tasks)
	assert.EqualValues(t, 20, done.Load())
}

func TestGroupPool_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	tasks := make([]GroupTask, 12)
	for i := range tasks {
		tasks[i] = GroupTask{
			Name: fmt.Sprintf("task-%d", i),
			Run: func(context.Context) {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
			},
		}
	}

	NewGroupPool(3).Run(context.Background(), tasks)
	assert.LessOrEqual(t, peak, 3)
	assert.GreaterOrEqual(t, peak, 1)
}

func TestGroupPool_SurvivesPanics(t *testing.T) {
	t.Parallel()

	var done atomic.Int32
	tasks := []GroupTask{
		{Name: "boom", Run: func(context.Context) { panic("boom") }},
		{Name: "ok-1", Run: func(context.Context) { done.Add(1) }},
		{Name: "ok-2", Run: func(context.Context) { done.Add(1) }},
	}

	NewGroupPool(1).Run(context.Background(), tasks)
	assert.EqualValues(t, 2, done.Load())
}

func TestGroupPool_ZeroConcurrencyFallsBackToOne(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, NewGroupPool(0).Concurrency())
}
