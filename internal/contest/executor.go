package contest

import (
	"log/slog"
	"sync"

	"github.com/skirmish-gg/skirmish/internal/model"
)

// DefaultWorkers is the executor pool size when none is configured.
const DefaultWorkers = 5

// Executor is a fixed pool of persistent workers draining a shared FIFO
// task queue. Submission never blocks; each contest runs fully on one
// worker; completion order across workers is not submission order.
type Executor struct {
	runner *Runner
	logger *slog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	tasks     []*Task
	completed []*model.Contest
	stopped   bool

	workers int
	wg      sync.WaitGroup
}

// NewExecutor creates an executor with the given pool size.
func NewExecutor(workers int, runner *Runner, logger *slog.Logger) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	e := &Executor{
		runner:  runner,
		logger:  logger,
		workers: workers,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start launches the worker pool.
func (e *Executor) Start() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.work(i)
	}
}

// Submit enqueues a contest for execution. It never blocks the submitter;
// tasks submitted after shutdown are dropped with a log line.
func (e *Executor) Submit(task *Task) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		e.logger.Warn("executor stopped, dropping contest")
		return
	}
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
	e.cond.Signal()
}

func (e *Executor) work(id int) {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		for len(e.tasks) == 0 && !e.stopped {
			e.cond.Wait()
		}
		if len(e.tasks) == 0 && e.stopped {
			e.mu.Unlock()
			return
		}
		task := e.tasks[0]
		e.tasks = e.tasks[1:]
		e.mu.Unlock()

		e.logger.Info("contest starting",
			slog.Int("worker", id),
			slog.Bool("ranked", task.Contest.Ranked))
		e.runner.Run(task)

		e.mu.Lock()
		e.completed = append(e.completed, task.Contest)
		e.mu.Unlock()
	}
}

// TakeSettleable removes and returns every completed contest with a
// decided winner. Entries without a winner stay put.
func (e *Executor) TakeSettleable() []*model.Contest {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ready []*model.Contest
	kept := e.completed[:0]
	for _, c := range e.completed {
		if c.Winner() == nil {
			kept = append(kept, c)
			continue
		}
		ready = append(ready, c)
	}
	e.completed = kept
	return ready
}

// PendingLen returns the number of queued, not yet started tasks.
func (e *Executor) PendingLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// CompletedLen returns the number of finished contests awaiting
// settlement.
func (e *Executor) CompletedLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.completed)
}

// Shutdown signals workers to stop after their current task and waits for
// them. There is no mid-task cancellation.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}
