package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/probe"
	"github.com/rp-cli/rp/internal/registry"
	"github.com/rp-cli/rp/internal/runpod"
	"github.com/rp-cli/rp/internal/schedule"
	"github.com/rp-cli/rp/internal/ui"
)

const (
	// defaultImage is used when neither --image nor a template supplies one.
	defaultImage = "runpod/pytorch:2.1.0-py3.10-cuda11.8.0-devel-ubuntu22.04"

	// readyTimeout bounds how long create/start wait for network info.
	readyTimeout = 5 * time.Minute

	// probeTimeout bounds the post-provision SSH reachability check.
	probeTimeout = 10 * time.Second
)

type createOptions struct {
	GPU      string
	Storage  string
	Disk     string
	Image    string
	Template string
	Config   []string
	Force    bool
	DryRun   bool
}

func createCommand(alias string, opts createOptions) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}

	// Template fills in anything the flags leave blank.
	if opts.Template != "" {
		tmpl, ok := state.Template(opts.Template)
		if !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Template '%s' not found", opts.Template),
				"List templates with 'rp template list'")
		}
		if opts.GPU == "" {
			opts.GPU = tmpl.GPUSpec
		}
		if opts.Storage == "" {
			opts.Storage = tmpl.StorageSpec
		}
		if opts.Disk == "" {
			opts.Disk = tmpl.ContainerDiskSpec
		}
		if opts.Image == "" {
			opts.Image = tmpl.Image
		}
		if len(opts.Config) == 0 && tmpl.Config.Path != "" {
			opts.Config = []string{"path=" + tmpl.Config.Path}
		}
		if alias == "" {
			alias = tmpl.ExpandAlias(state.NextAliasIndex(tmpl))
		}
	}

	if alias == "" {
		return errors.New(errors.ErrAlias,
			"No alias given",
			"Pass an alias ('rp create gpu1 ...') or use --template")
	}
	if opts.GPU == "" || opts.Storage == "" {
		return errors.New(errors.ErrConfig,
			"Both --gpu and --storage are required",
			"Example: rp create gpu1 --gpu 1xA100 --storage 100GB")
	}

	gpu, err := ParseGPUSpec(opts.GPU)
	if err != nil {
		return err
	}
	storageGB, err := ParseStorageSpec(opts.Storage)
	if err != nil {
		return err
	}
	diskGB := 0
	if opts.Disk != "" {
		if diskGB, err = ParseStorageSpec(opts.Disk); err != nil {
			return err
		}
	}
	podCfg, err := ParseConfigFlags(opts.Config)
	if err != nil {
		return err
	}
	image := opts.Image
	if image == "" {
		image = defaultImage
	}

	if _, taken := state.PodID(alias); taken && !opts.Force {
		return errors.New(errors.ErrAlias,
			fmt.Sprintf("Alias '%s' is already tracked", alias),
			"Pick another alias or pass --force to replace it")
	}
	if collision, err := a.ssh.UnmanagedCollision(alias); err != nil {
		return err
	} else if collision && !opts.Force {
		ok, err := confirm(
			fmt.Sprintf("Your SSH config already has a Host block for '%s'", alias),
			"rp will replace it with a managed block. Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if opts.DryRun {
		fmt.Printf("Would create pod '%s': %dx %s, %dGB volume, image %s\n",
			alias, gpu.Count, gpu.Model, storageGB, image)
		return nil
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	gpuTypeID, err := client.FindGPUTypeID(ctx, gpu.Model)
	if err != nil {
		return err
	}

	sp := ui.NewSpinner(fmt.Sprintf("Creating pod %s (%dx %s)", alias, gpu.Count, gpu.Model))
	sp.Start()
	pod, err := client.CreatePod(ctx, runpod.CreateRequest{
		Name:            alias,
		ImageName:       image,
		GPUTypeID:       gpuTypeID,
		GPUCount:        gpu.Count,
		VolumeGB:        storageGB,
		ContainerDiskGB: diskGB,
	})
	if err != nil {
		sp.Fail()
		return err
	}

	sp.SetLabel("Waiting for pod " + pod.ID + " to come up")
	pod, err = client.WaitForReady(ctx, pod.ID, readyTimeout)
	if err != nil {
		sp.Fail()
		return err
	}
	sp.Success()

	// Track first so the pod isn't orphaned if the SSH config write fails.
	err = a.store.Update(func(s *registry.State) (bool, error) {
		s.AddAlias(alias, pod.ID, true)
		if podCfg.Path != "" {
			if err := s.SetConfigValue(alias, "path", podCfg.Path); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	if err := a.writeSSHEntry(alias, pod); err != nil {
		return err
	}

	a.probeAndReport(alias, pod)
	fmt.Printf("%s Pod %s ready: ssh %s\n", ui.SymbolSuccess, pod.ID, alias)
	a.autoClean(ctx, client)
	return nil
}

func startCommand(alias string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}
	alias, podID, err := a.resolveAlias(state, alias, "Select pod to start")
	if err != nil {
		return err
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	gpuCount := 1
	if pod, err := client.GetPod(ctx, podID); err == nil && pod.GPUCount > 0 {
		gpuCount = pod.GPUCount
	}

	sp := ui.NewSpinner("Starting pod " + alias)
	sp.Start()
	if err := client.StartPod(ctx, podID, gpuCount); err != nil {
		sp.Fail()
		return err
	}

	sp.SetLabel("Waiting for pod " + alias + " to come up")
	pod, err := client.WaitForReady(ctx, podID, readyTimeout)
	if err != nil {
		sp.Fail()
		return err
	}
	sp.Success()

	if err := a.writeSSHEntry(alias, pod); err != nil {
		return err
	}

	a.probeAndReport(alias, pod)
	fmt.Printf("%s Pod %s running: ssh %s\n", ui.SymbolSuccess, podID, alias)
	a.autoClean(ctx, client)
	return nil
}

func stopCommand(alias, inFlag, atFlag string) error {
	if inFlag != "" && atFlag != "" {
		return errors.New(errors.ErrSchedule,
			"--in and --at cannot be used together",
			"Pick one way to say when")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}
	alias, podID, err := a.resolveAlias(state, alias, "Select pod to stop")
	if err != nil {
		return err
	}

	// With a time flag, record a task instead of stopping now.
	if inFlag != "" || atFlag != "" {
		expr := inFlag
		if expr == "" {
			expr = atFlag
		}
		now := time.Now()
		when, err := schedule.ParseWhen(expr, now)
		if err != nil {
			return err
		}

		task := schedule.NewTask("stop", alias, when, now)
		err = a.store.Update(func(s *registry.State) (bool, error) {
			s.AddTask(task)
			return true, nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s Scheduled stop of %s at %s (task %s)\n",
			ui.SymbolSuccess, alias, when.Format("2006-01-02 15:04"), task.ID)
		fmt.Println("Make sure 'rp scheduler-tick' runs from cron.")
		return nil
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := client.StopPod(ctx, podID); err != nil {
		return err
	}
	fmt.Printf("%s Stopped %s (volume kept, billing for storage only)\n", ui.SymbolSuccess, alias)
	a.autoClean(ctx, client)
	return nil
}

func destroyCommand(alias string, force bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}
	alias, podID, err := a.resolveAlias(state, alias, "Select pod to destroy")
	if err != nil {
		return err
	}

	if !force {
		ok, err := confirm(
			fmt.Sprintf("Terminate pod '%s' (%s)?", alias, podID),
			"The pod and its volume are destroyed. This cannot be undone.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := client.TerminatePod(ctx, podID); err != nil {
		return err
	}

	err = a.store.Update(func(s *registry.State) (bool, error) {
		s.RemoveAlias(alias)
		// Orphaned stop tasks would just fail at tick time; cancel them now.
		for i := range s.Tasks {
			if s.Tasks[i].Alias == alias && s.Tasks[i].Status == schedule.StatusPending {
				s.Tasks[i].Status = schedule.StatusCancelled
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	if _, err := a.ssh.Remove(alias); err != nil {
		return err
	}

	fmt.Printf("%s Destroyed %s\n", ui.SymbolSuccess, alias)
	a.autoClean(ctx, client)
	return nil
}

// writeSSHEntry writes the managed block for a running pod.
func (a *app) writeSSHEntry(alias string, pod *runpod.Pod) error {
	ip, port, ok := pod.SSHAddress()
	if !ok {
		return errors.New(errors.ErrSSH,
			"Pod is up but doesn't expose SSH on a public address",
			"Make sure the pod template exposes port 22/tcp")
	}

	return a.ssh.CreateOrUpdate(sshconfigEntry(alias, pod.ID, ip, port, a.settings.IdentityFile), time.Now())
}

// probeAndReport checks SSH reachability and prints a warning when the pod
// answers but auth fails (key not installed yet).
func (a *app) probeAndReport(alias string, pod *runpod.Pod) {
	ip, port, ok := pod.SSHAddress()
	if !ok {
		return
	}

	res := probe.Pod(fmt.Sprintf("%s:%d", ip, port), "root", a.settings.IdentityFile, probeTimeout)
	switch {
	case res.Error == nil:
		return
	case res.Reachable():
		fmt.Printf("%s SSH is up but your key was rejected; add your public key to the pod\n", ui.SymbolFail)
	default:
		fmt.Printf("%s SSH not reachable yet at %s; it may need another minute\n", ui.SymbolFail, res.Address)
	}
}
