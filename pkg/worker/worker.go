package worker

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ledgerkraft/bookkeeping/pkg/logger"
)

var ErrWorkersTerminated = errors.New("workers terminated")

type WorkerHandler = func(workerIndex int, job interface{})

type WorkerManager struct {
	bufferSize     int
	jobChannel     chan interface{}
	numberOfWorker int
	sigTerm        chan os.Signal
	stop           chan struct{}
	stopOnce       sync.Once
	do             WorkerHandler
	waiter         *sync.WaitGroup
}

// NewWorkerManager
// is a job manager based on go routines. Define the number of internal
// workers, and start publishing jobs using Enqueue. It distributes the jobs
// among its internal pool until Exit is called or the process receives SIGTERM.
// A job channel passed in from outside is never closed by the manager.
func NewWorkerManager(bufferSize, numberOfWorkers int, jobChannel chan interface{}) *WorkerManager {
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	var sigChan = make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)

	return &WorkerManager{
		bufferSize:     bufferSize,
		numberOfWorker: numberOfWorkers,
		jobChannel:     jobChannel,
		sigTerm:        sigChan,
		stop:           make(chan struct{}),
		waiter:         &sync.WaitGroup{},
	}
}

// Backlog is the number of jobs waiting for a free worker.
func (w *WorkerManager) Backlog() int {
	return len(w.jobChannel)
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue
// Publishes a job onto the channel. It returns false once the manager is stopping.
func (w *WorkerManager) Enqueue(val interface{}) bool {
	select {
	case <-w.stop:
		return false
	default:
	}
	select {
	case w.jobChannel <- val:
		return true
	case <-w.stop:
		return false
	}
}

// Start
// starts off the workers as many as defined
// by w.numberOfWorker and blocks until they exit.
func (w *WorkerManager) Start() error {
	go func() {
		select {
		case <-w.sigTerm:
			w.Exit()
		case <-w.stop:
		}
	}()

	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(index, job)
				case <-w.stop:
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()
	signal.Stop(w.sigTerm)

	return ErrWorkersTerminated
}

// Exit
// stops every worker after its current job. Jobs still buffered are dropped.
func (w *WorkerManager) Exit() {
	w.stopOnce.Do(func() {
		logger.Info("Exit() is called and worker manager is going to be shutdown")
		close(w.stop)
	})
}
