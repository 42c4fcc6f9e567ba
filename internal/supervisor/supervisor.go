// Package supervisor implements the worker pool: it forks one worker process
// per core, all binding the same port via SO_REUSEPORT, and replaces any
// worker that exits. The supervisor itself serves no requests and holds no
// application state; each worker initializes its own full component graph,
// including a private lookup cache.
package supervisor

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dzaytsev/credkeeper/internal/logging"
)

const (
	workerEnv     = "CREDKEEPER_WORKER"
	workerSlotEnv = "CREDKEEPER_WORKER_SLOT"

	startRetryDelay = time.Second
)

// IsWorker reports whether the current process was spawned as a worker.
func IsWorker() bool {
	return os.Getenv(workerEnv) == "1"
}

// Run spawns n workers (0 means one per CPU core) and blocks until ctx is
// canceled, respawning any worker that exits early. On cancellation it sends
// SIGTERM to the children and waits for them to finish their graceful
// shutdown.
func Run(ctx context.Context, logger logging.Logger, n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}

	log := logger.With("module", "supervisor")
	log.Info(ctx, "Starting workers", "count", n)

	var wg sync.WaitGroup
	for slot := 0; slot < n; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			superviseSlot(ctx, log, slot)
		}(slot)
	}
	wg.Wait()

	log.Info(ctx, "All workers stopped")
}

// superviseSlot keeps exactly one live worker in the slot until ctx ends.
func superviseSlot(ctx context.Context, log logging.Logger, slot int) {
	for ctx.Err() == nil {
		cmd := workerCommand(slot)

		if err := cmd.Start(); err != nil {
			log.Error(ctx, "Failed to start worker", "slot", slot, "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(startRetryDelay):
				continue
			}
		}

		log.Info(ctx, "Worker started", "slot", slot, "pid", cmd.Process.Pid)

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		select {
		case <-ctx.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
			<-done
			return
		case err := <-done:
			// a worker crash is exceptional; the respawn restores capacity
			log.Warn(ctx, "Worker exited, respawning", "slot", slot, "error", errString(err))
		}
	}
}

func workerCommand(slot int) *exec.Cmd {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(),
		workerEnv+"=1",
		workerSlotEnv+"="+strconv.Itoa(slot),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

func errString(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}

// Slot returns the worker slot assigned by the supervisor, for log
// correlation. It is -1 outside a worker process.
func Slot() int {
	v := os.Getenv(workerSlotEnv)
	if v == "" {
		return -1
	}
	slot, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return slot
}
