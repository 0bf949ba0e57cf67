package services

import (
	"context"
	"log"
	"sync"
)

// GroupTask is one unit of work submitted to a GroupPool.
type GroupTask struct {
	Name string
	Run  func(ctx context.Context)
}

// GroupPool runs tasks on a fixed number of goroutines.
type GroupPool struct {
	concurrency int
}

func NewGroupPool(concurrency int) *GroupPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &GroupPool{concurrency: concurrency}
}

func (p *GroupPool) Concurrency() int {
	return p.concurrency
}

// Run executes every task and returns once all of them have settled. Tasks
// not yet started when ctx is cancelled are skipped. A panicking task is
// logged and does not affect the others.
func (p *GroupPool) Run(ctx context.Context, tasks []GroupTask) {
	if len(tasks) == 0 {
		return
	}

	workers := p.concurrency
	if workers > len(tasks) {
		workers = len(tasks)
	}

	jobQueue := make(chan GroupTask)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.processTasks(ctx, i+1, jobQueue, &wg)
	}

	for _, task := range tasks {
		select {
		case jobQueue <- task:
		case <-ctx.Done():
			log.Printf("⚠️  Pool cancelled, not starting %s: %v", task.Name, ctx.Err())
		}
	}
	close(jobQueue)

	wg.Wait()
}

func (p *GroupPool) processTasks(ctx context.Context, workerID int, jobQueue <-chan GroupTask, wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range jobQueue {
		p.runTask(ctx, workerID, task)
	}
}

func (p *GroupPool) runTask(ctx context.Context, workerID int, task GroupTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Worker #%d: task %s panicked: %v", workerID, task.Name, r)
		}
	}()

	log.Printf("👷 Worker #%d processing %s", workerID, task.Name)
	task.Run(ctx)
}
