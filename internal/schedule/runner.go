package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rp-cli/rp/internal/logger"
)

// PodStopper stops a pod by id. Satisfied by the runpod client and test mocks.
type PodStopper interface {
	StopPod(ctx context.Context, podID string) error
}

// AliasResolver maps a pod alias to its backing pod id.
// Satisfied by the registry state and test mocks.
type AliasResolver interface {
	PodID(alias string) (string, bool)
}

// TickResult summarizes one scheduler pass.
type TickResult struct {
	Executed int
	Failed   int
}

// Runner executes due tasks. It mutates task statuses in place; the caller
// persists the task list afterward.
type Runner struct {
	API PodStopper
	Reg AliasResolver
	Log logger.Logger
}

// Tick runs every due task in order. Unknown actions and aliases that no
// longer resolve mark the task failed rather than aborting the pass.
func (r *Runner) Tick(ctx context.Context, tasks []Task, now time.Time) (TickResult, []Task) {
	log := r.Log
	if log == nil {
		log = logger.Noop()
	}

	var res TickResult
	for i := range tasks {
		t := &tasks[i]
		if t.Status != StatusPending || t.WhenEpoch > now.Unix() {
			continue
		}

		if err := r.execute(ctx, t); err != nil {
			t.Status = StatusFailed
			t.LastError = err.Error()
			res.Failed++
			log.Warn("task %s (%s %s) failed: %v", t.ID, t.Action, t.Alias, err)
			continue
		}

		t.Status = StatusCompleted
		t.LastError = ""
		res.Executed++
		log.Debug("task %s (%s %s) completed", t.ID, t.Action, t.Alias)
	}
	return res, tasks
}

func (r *Runner) execute(ctx context.Context, t *Task) error {
	switch t.Action {
	case "stop":
		podID, ok := r.Reg.PodID(t.Alias)
		if !ok {
			return fmt.Errorf("alias %q is no longer tracked", t.Alias)
		}
		return r.API.StopPod(ctx, podID)
	default:
		return fmt.Errorf("unknown action %q", t.Action)
	}
}
