package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/logger"
	"github.com/rp-cli/rp/internal/registry"
	"github.com/rp-cli/rp/internal/schedule"
	"github.com/rp-cli/rp/internal/ui"
	"github.com/rp-cli/rp/internal/util"
)

func scheduleListCommand() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}

	if len(state.Tasks) == 0 {
		fmt.Println("No scheduled tasks.")
		return nil
	}

	for _, t := range state.Tasks {
		line := fmt.Sprintf("%s  %s %s at %s  [%s]",
			t.ID, t.Action, t.Alias, t.When().Format("2006-01-02 15:04"), t.Status)
		if t.LastError != "" {
			line += "  " + t.LastError
		}
		fmt.Println(line)
	}
	return nil
}

func scheduleCancelCommand(id string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var cancelled bool
	err = a.store.Update(func(s *registry.State) (bool, error) {
		cancelled = s.CancelTask(id)
		return cancelled, nil
	})
	if err != nil {
		return err
	}
	if !cancelled {
		return errors.New(errors.ErrSchedule,
			fmt.Sprintf("No pending task with id '%s'", id),
			"List tasks with 'rp schedule list'")
	}

	fmt.Printf("%s Cancelled task %s\n", ui.SymbolSuccess, id)
	return nil
}

func schedulerTickCommand() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}

	now := time.Now()
	if len(state.PendingTasks(now)) == 0 {
		return nil
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}

	runner := &schedule.Runner{
		API: client,
		Reg: state,
		Log: logger.NewEnvLogger("[scheduler]"),
	}
	result, tasks := runner.Tick(context.Background(), state.Tasks, now)

	err = a.store.Update(func(s *registry.State) (bool, error) {
		s.Tasks = tasks
		return true, nil
	})
	if err != nil {
		return err
	}

	if result.Executed > 0 || result.Failed > 0 {
		fmt.Printf("%s Executed %d %s, %d failed\n",
			ui.SymbolSuccess,
			result.Executed, util.Pluralize(result.Executed, "task", "tasks"),
			result.Failed)
	}
	return nil
}
