package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/logger"
	"github.com/rp-cli/rp/internal/registry"
	"github.com/rp-cli/rp/internal/runpod"
	"github.com/rp-cli/rp/internal/sshconfig"
	"github.com/rp-cli/rp/internal/ui"
	"github.com/rp-cli/rp/internal/util"
)

func trackCommand(podID, alias string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	client, err := a.apiClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pod, err := client.GetPod(ctx, podID)
	if err != nil {
		return err
	}

	if alias == "" {
		alias = pod.Name
	}
	if alias == "" {
		return errors.New(errors.ErrAlias,
			"Pod has no name to use as an alias",
			"Pass one explicitly: rp track "+podID+" <alias>")
	}

	state, err := a.store.Load()
	if err != nil {
		return err
	}
	if existing, taken := state.PodID(alias); taken && existing != podID {
		return errors.New(errors.ErrAlias,
			fmt.Sprintf("Alias '%s' already tracks pod %s", alias, existing),
			"Pick another alias or untrack it first")
	}
	if collision, err := a.ssh.UnmanagedCollision(alias); err != nil {
		return err
	} else if collision {
		ok, err := confirm(
			fmt.Sprintf("Your SSH config already has a Host block for '%s'", alias),
			"rp will replace it with a managed block when the pod starts. Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	err = a.store.Update(func(s *registry.State) (bool, error) {
		return s.AddAlias(alias, podID, true), nil
	})
	if err != nil {
		return err
	}

	// Only a running pod has an address to write.
	if pod.Status() == runpod.StatusRunning {
		if err := a.writeSSHEntry(alias, pod); err != nil {
			return err
		}
		fmt.Printf("%s Tracking %s as '%s': ssh %s\n", ui.SymbolSuccess, podID, alias, alias)
	} else {
		fmt.Printf("%s Tracking %s as '%s' (pod is %s; SSH block written on start)\n",
			ui.SymbolSuccess, podID, alias, pod.Status())
	}
	return nil
}

func untrackCommand(alias string, missingOK bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}

	if alias == "" {
		aliases := state.AllAliases()
		if len(aliases) == 0 {
			if missingOK {
				return nil
			}
			return errors.New(errors.ErrAlias,
				"No pods tracked", "Nothing to untrack.")
		}
		if alias, err = pickAlias(aliases, "Select pod to untrack"); err != nil {
			return err
		}
	}

	var removed bool
	err = a.store.Update(func(s *registry.State) (bool, error) {
		_, removed = s.RemoveAlias(alias)
		return removed, nil
	})
	if err != nil {
		return err
	}
	if !removed && !missingOK {
		return errors.New(errors.ErrAlias,
			fmt.Sprintf("Alias '%s' is not tracked", alias),
			"List tracked pods with 'rp list'")
	}

	if _, err := a.ssh.Remove(alias); err != nil {
		return err
	}

	if removed {
		fmt.Printf("%s Untracked %s (pod keeps running; destroy it with 'rp destroy')\n",
			ui.SymbolSuccess, alias)
	}
	return nil
}

func listCommand(watch bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}

	if len(state.AllAliases()) == 0 {
		fmt.Println("No pods tracked. Create one with 'rp create' or adopt one with 'rp track'.")
		return nil
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}

	if watch {
		return ui.RunWatch(func() ([]ui.PodRow, error) {
			state, err := a.store.Load()
			if err != nil {
				return nil, err
			}
			return podRows(client, state.AllAliases()), nil
		}, 5*time.Second)
	}

	fmt.Print(ui.RenderPodTable(podRows(client, state.AllAliases())))
	return nil
}

// podRows fetches the cloud-side state for every tracked alias in order.
func podRows(client *runpod.Client, aliases map[string]string) []ui.PodRow {
	ctx := context.Background()

	var names []string
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]ui.PodRow, 0, len(names))
	for _, name := range names {
		podID := aliases[name]
		row := ui.PodRow{Alias: name, PodID: podID, Status: string(runpod.StatusInvalid)}

		if pod, err := client.GetPod(ctx, podID); err == nil {
			row.Status = string(pod.Status())
			row.GPU = pod.GPUModel()
			if pod.Status() == runpod.StatusRunning {
				row.CostHr = ui.CostPerHour(pod.CostPerHour)
				if ip, port, ok := pod.SSHAddress(); ok {
					row.Address = fmt.Sprintf("%s:%d", ip, port)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func showCommand(alias string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}
	alias, podID, err := a.resolveAlias(state, alias, "Select pod to show")
	if err != nil {
		return err
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}
	pod, err := client.GetPod(context.Background(), podID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", alias, podID)
	fmt.Printf("  status: %s\n", pod.Status())
	if pod.GPUModel() != "" {
		fmt.Printf("  gpu:    %s\n", pod.GPUModel())
	}
	if pod.ImageName != "" {
		fmt.Printf("  image:  %s\n", pod.ImageName)
	}
	fmt.Printf("  volume: %dGB\n", pod.VolumeGB)
	if pod.Status() == runpod.StatusRunning {
		fmt.Printf("  cost:   %s\n", ui.CostPerHour(pod.CostPerHour))
		if ip, port, ok := pod.SSHAddress(); ok {
			fmt.Printf("  ssh:    root@%s:%d\n", ip, port)
		}
	}
	if cfg, ok := state.Config(alias); ok && cfg.Path != "" {
		fmt.Printf("  path:   %s\n", cfg.Path)
	}

	// What ssh itself would use for this alias, wildcard blocks included.
	eff, err := sshconfig.Resolve(a.settings.SSHConfig, alias)
	if err != nil {
		return err
	}
	if eff.Hostname != "" || eff.User != "" {
		fmt.Printf("\nEffective SSH settings (%s):\n", util.ContractPath(a.settings.SSHConfig))
		if eff.Hostname != "" {
			fmt.Printf("  HostName     %s\n", eff.Hostname)
		}
		if eff.User != "" {
			fmt.Printf("  User         %s\n", eff.User)
		}
		if eff.Port != "" {
			fmt.Printf("  Port         %s\n", eff.Port)
		}
		if eff.IdentityFile != "" {
			fmt.Printf("  IdentityFile %s\n", eff.IdentityFile)
		}
	}
	return nil
}

// cleanOutcome reports what one cleanup pass changed.
type cleanOutcome struct {
	valid        map[string]bool
	stale        []string
	prunedBlocks int
	cleanedTasks int
}

// cleanStale drops aliases whose pods no longer answer the API, prunes their
// managed SSH config blocks, and clears finished scheduled tasks.
func (a *app) cleanStale(ctx context.Context, client *runpod.Client) (cleanOutcome, error) {
	out := cleanOutcome{valid: make(map[string]bool)}

	state, err := a.store.Load()
	if err != nil {
		return out, err
	}

	// Everything still answering the API survives; the rest gets dropped.
	for alias, podID := range state.AllAliases() {
		if client.PodStatus(ctx, podID) != runpod.StatusInvalid {
			out.valid[alias] = true
		} else {
			out.stale = append(out.stale, alias)
		}
	}
	sort.Strings(out.stale)

	err = a.store.Update(func(s *registry.State) (bool, error) {
		for _, alias := range out.stale {
			s.RemoveAlias(alias)
		}
		out.cleanedTasks = s.CleanFinishedTasks()
		return len(out.stale) > 0 || out.cleanedTasks > 0, nil
	})
	if err != nil {
		return out, err
	}

	out.prunedBlocks, err = a.ssh.Prune(out.valid)
	return out, err
}

// autoClean runs the cleanup pass quietly at the end of lifecycle commands,
// so stale aliases don't accumulate between explicit 'rp clean' runs. It is
// best-effort: failures are logged under RP_DEBUG, never surfaced.
func (a *app) autoClean(ctx context.Context, client *runpod.Client) {
	if _, err := a.cleanStale(ctx, client); err != nil {
		logger.Default().Debug("auto-clean failed: %v", err)
	}
}

func cleanCommand() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	client, err := a.apiClient()
	if err != nil {
		return err
	}

	out, err := a.cleanStale(context.Background(), client)
	if err != nil {
		return err
	}

	for _, alias := range out.stale {
		fmt.Printf("%s Dropped %s (pod gone)\n", ui.SymbolSuccess, alias)
	}

	// Surviving aliases with no Host block at all can't be ssh'd to yet.
	declared, err := sshconfig.DeclaredAliases(a.settings.SSHConfig)
	if err != nil {
		return err
	}
	inConfig := make(map[string]bool, len(declared))
	for _, d := range declared {
		inConfig[d] = true
	}
	var missing []string
	for alias := range out.valid {
		if !inConfig[alias] {
			missing = append(missing, alias)
		}
	}
	sort.Strings(missing)
	for _, alias := range missing {
		fmt.Printf("%s %s has no SSH config block; run 'rp start %s' to write one\n",
			ui.SymbolPending, alias, alias)
	}
	fmt.Printf("%s Pruned %d managed SSH %s, cleaned %d finished %s\n",
		ui.SymbolSuccess,
		out.prunedBlocks, util.Pluralize(out.prunedBlocks, "block", "blocks"),
		out.cleanedTasks, util.Pluralize(out.cleanedTasks, "task", "tasks"))
	return nil
}
