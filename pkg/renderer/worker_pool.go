package renderer

import (
	"sync"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/film"
	"github.com/df07/go-acoustic-raytracer/pkg/integrator"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
)

// BandTask is one pass over one frequency band
type BandTask struct {
	TaskID int // Dispatch order, band-major
	Band   int
	Pass   int
}

// BandResult contains the outcome of a band task
type BandResult struct {
	TaskID  int
	Band    int
	Pass    int
	Stats   BandStats
	Skipped bool // Task was dequeued after cancellation and never traced
	Error   error
}

// WorkerPool runs band tasks in parallel and merges each result into the tape
type WorkerPool struct {
	taskQueue   chan BandTask
	resultQueue chan BandResult
	workers     []*Worker
	numWorkers  int
	wg          sync.WaitGroup
}

// Worker owns a sampler and a scratch histogram for the band it is tracing
type Worker struct {
	ID          int
	owner       *TimeDependentIntegrator
	scene       integrator.Scene
	mic         *sensor.Microphone
	tape        *film.Tape
	sampler     core.ReseedableSampler
	taskQueue   chan BandTask
	resultQueue chan BandResult
}

// NewWorkerPool creates a pool sized for maxTasks queued tasks
func NewWorkerPool(owner *TimeDependentIntegrator, scene integrator.Scene, mic *sensor.Microphone, tape *film.Tape, numWorkers, maxTasks int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	wp := &WorkerPool{
		taskQueue:   make(chan BandTask, maxTasks),
		resultQueue: make(chan BandResult, maxTasks),
		numWorkers:  numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{
			ID:          i,
			owner:       owner,
			scene:       scene,
			mic:         mic,
			tape:        tape,
			sampler:     core.NewSeededSampler(uint64(i)),
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		})
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop closes the task queue and waits for the workers to drain it
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// SubmitTask queues a band task
func (wp *WorkerPool) SubmitTask(task BandTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed task result
func (wp *WorkerPool) GetResult() (BandResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		w.resultQueue <- w.render(task)
	}
}

// render traces a task into a fresh band histogram and merges it into the
// tape. Partial work of a cancelled task is merged as well.
func (w *Worker) render(task BandTask) BandResult {
	result := BandResult{TaskID: task.TaskID, Band: task.Band, Pass: task.Pass}
	if w.owner.stopped() {
		result.Skipped = true
		return result
	}

	hist, err := w.owner.newBandHistogram(task.Band)
	if err != nil {
		result.Error = err
		return result
	}

	result.Stats = w.owner.RenderBand(w.scene, w.mic, w.sampler, hist, task.Band, task.Pass)
	if err := w.tape.Put(hist); err != nil {
		result.Error = err
		return result
	}

	if !result.Stats.Cancelled {
		w.owner.completeTask(task.Band, task.Pass)
	}
	return result
}
