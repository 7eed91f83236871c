package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rp-cli/rp/internal/errors"
)

// Command-specific flags
var (
	createGPUFlag      string
	createStorageFlag  string
	createDiskFlag     string
	createImageFlag    string
	createTemplateFlag string
	createConfigFlags  []string
	createForce        bool
	createDryRun       bool
	stopInFlag         string
	stopAtFlag         string
	destroyForce       bool
	untrackMissingOK   bool
	listWatch          bool
	cursorPathFlag     string
	codePathFlag       string
)

// createCmd provisions a new pod and wires up its SSH alias
var createCmd = &cobra.Command{
	Use:   "create <alias>",
	Short: "Create a pod and set up its SSH alias",
	Long: `Create a new RunPod pod, wait for it to come up, and write a managed
Host block to your SSH config so "ssh <alias>" works immediately.

The GPU spec is <count>x<model> (count defaults to 1). Storage is the
persistent /workspace volume.

Examples:
  rp create gpu1 --gpu 1xA100 --storage 100GB
  rp create train --gpu 2xH100 --storage 1TB --image runpod/pytorch:2.1
  rp create dev --template small
  rp create gpu2 --gpu h100 --storage 50GB --config path=/workspace/app`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias := ""
		if len(args) > 0 {
			alias = args[0]
		}
		return createCommand(alias, createOptions{
			GPU:      createGPUFlag,
			Storage:  createStorageFlag,
			Disk:     createDiskFlag,
			Image:    createImageFlag,
			Template: createTemplateFlag,
			Config:   createConfigFlags,
			Force:    createForce,
			DryRun:   createDryRun,
		})
	},
}

// startCmd resumes a stopped pod
var startCmd = &cobra.Command{
	Use:   "start [alias]",
	Short: "Start a stopped pod",
	Long: `Resume a stopped pod and refresh its managed SSH config block with the
new connection address. Pod IPs change on every start, so the block is
rewritten each time.

Examples:
  rp start gpu1
  rp start`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return startCommand(optionalArg(args))
	},
}

// stopCmd stops a running pod, now or at a scheduled time
var stopCmd = &cobra.Command{
	Use:   "stop [alias]",
	Short: "Stop a pod (optionally at a later time)",
	Long: `Stop a running pod. With --in or --at, schedule the stop instead of
doing it now; run "rp scheduler-tick" from cron to execute due tasks.

Examples:
  rp stop gpu1
  rp stop gpu1 --in 2h
  rp stop gpu1 --at 18:30`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopCommand(optionalArg(args), stopInFlag, stopAtFlag)
	},
}

// destroyCmd terminates a pod permanently
var destroyCmd = &cobra.Command{
	Use:   "destroy [alias]",
	Short: "Terminate a pod and remove its alias",
	Long: `Terminate a pod permanently, drop it from the registry, and remove its
managed SSH config block. The pod's volume is destroyed with it.

Examples:
  rp destroy gpu1
  rp destroy gpu1 --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return destroyCommand(optionalArg(args), destroyForce)
	},
}

// trackCmd adopts an existing pod
var trackCmd = &cobra.Command{
	Use:   "track <pod_id> [alias]",
	Short: "Track an existing pod under an alias",
	Long: `Adopt a pod that already exists in your RunPod account. The alias
defaults to the pod's name. If the pod is running, a managed SSH config
block is written immediately.

Examples:
  rp track abc123xyz
  rp track abc123xyz gpu1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias := ""
		if len(args) > 1 {
			alias = args[1]
		}
		return trackCommand(args[0], alias)
	},
}

// untrackCmd drops a pod from the registry without terminating it
var untrackCmd = &cobra.Command{
	Use:   "untrack [alias]",
	Short: "Stop tracking a pod (does not terminate it)",
	Long: `Remove a pod from the registry and delete its managed SSH config block.
The pod itself keeps running; use destroy to terminate it.

Examples:
  rp untrack gpu1
  rp untrack gpu1 --missing-ok`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return untrackCommand(optionalArg(args), untrackMissingOK)
	},
}

// listCmd shows all tracked pods
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked pods and their status",
	Long: `List every tracked pod with its cloud-side status, GPU, hourly cost,
and SSH address. With --watch, keep the table on screen and refresh it.

Examples:
  rp list
  rp list --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCommand(listWatch)
	},
}

// showCmd prints detail for one pod
var showCmd = &cobra.Command{
	Use:   "show [alias]",
	Short: "Show pod details and effective SSH settings",
	Long: `Show the pod's cloud-side state plus the SSH settings that actually
apply to its alias, resolved from the whole SSH config the way ssh itself
would (wildcard blocks included).

Examples:
  rp show gpu1`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showCommand(optionalArg(args))
	},
}

// cleanCmd removes stale registry and SSH config state
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove aliases whose pods no longer exist",
	Long: `Check every tracked pod against the API, drop aliases whose pods are
gone, prune their managed SSH config blocks, and clear finished scheduled
tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanCommand()
	},
}

// scheduleCmd groups the scheduled-task subcommands
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled pod actions",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return scheduleListCommand()
	},
}

var scheduleCancelCmd = &cobra.Command{
	Use:   "cancel <task_id>",
	Short: "Cancel a pending task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scheduleCancelCommand(args[0])
	},
}

// schedulerTickCmd executes due tasks; meant to run from cron
var schedulerTickCmd = &cobra.Command{
	Use:   "scheduler-tick",
	Short: "Execute due scheduled tasks (run from cron)",
	Long: `Execute every scheduled task whose time has come. Add to crontab:

  * * * * * rp scheduler-tick`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return schedulerTickCommand()
	},
}

// templateCmd groups the pod-template subcommands
var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage reusable pod templates",
}

var templateCreateCmd = &cobra.Command{
	Use:   "create <name> <alias_template>",
	Short: "Create a pod template",
	Long: `Create a reusable template. The alias template must contain {i},
which expands to the lowest unused index at create time.

Examples:
  rp template create small "dev{i}" --gpu 1xA100 --storage 50GB
  rp template create train "train{i}" --gpu 4xH100 --storage 1TB --image runpod/pytorch`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateCreateCommand(args[0], args[1], templateCreateOptions{
			GPU:     createGPUFlag,
			Storage: createStorageFlag,
			Disk:    createDiskFlag,
			Image:   createImageFlag,
			Config:  createConfigFlags,
		})
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pod templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateListCommand()
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a pod template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateDeleteCommand(args[0])
	},
}

// shellCmd opens an interactive SSH session
var shellCmd = &cobra.Command{
	Use:   "shell [alias]",
	Short: "Open an SSH session to a pod",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return shellCommand(optionalArg(args))
	},
}

// codeCmd attaches VS Code to a pod
var codeCmd = &cobra.Command{
	Use:   "code [alias]",
	Short: "Open VS Code attached to a pod",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editorCommand(optionalArg(args), "code", codePathFlag)
	},
}

// cursorCmd attaches Cursor to a pod
var cursorCmd = &cobra.Command{
	Use:   "cursor [alias]",
	Short: "Open Cursor attached to a pod",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editorCommand(optionalArg(args), "cursor", cursorPathFlag)
	},
}

// configCmd sets per-pod configuration
var configCmd = &cobra.Command{
	Use:   "config <alias> <key[=value]>...",
	Short: "Get or set per-pod configuration",
	Long: `Get or set per-pod settings. "path" is the default directory that
shell, code, and cursor open. A bare key prints its effective value.

Examples:
  rp config gpu1 path=/workspace/app
  rp config gpu1 path`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return configCommand(args[0], args[1:])
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for rp.

Examples:
  # Bash
  rp completion bash > /etc/bash_completion.d/rp

  # Zsh
  rp completion zsh > "${fpath[1]}/_rp"

  # Fish
  rp completion fish > ~/.config/fish/completions/rp.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

// optionalArg returns the first positional arg or "".
func optionalArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func init() {
	// create command flags (shared with template create)
	for _, cmd := range []*cobra.Command{createCmd, templateCreateCmd} {
		cmd.Flags().StringVar(&createGPUFlag, "gpu", "", "GPU spec, e.g. 2xA100")
		cmd.Flags().StringVar(&createStorageFlag, "storage", "", "persistent volume size, e.g. 500GB")
		cmd.Flags().StringVar(&createDiskFlag, "disk", "", "container disk size, e.g. 20GB")
		cmd.Flags().StringVar(&createImageFlag, "image", "", "container image")
		cmd.Flags().StringArrayVar(&createConfigFlags, "config", nil, "per-pod config, e.g. path=/workspace/app")
	}
	createCmd.Flags().StringVar(&createTemplateFlag, "template", "", "create from a saved template")
	createCmd.Flags().BoolVarP(&createForce, "force", "f", false, "overwrite an existing alias")
	createCmd.Flags().BoolVar(&createDryRun, "dry-run", false, "show what would be created without creating")

	// stop command flags
	stopCmd.Flags().StringVar(&stopInFlag, "in", "", "schedule the stop after a duration, e.g. 2h")
	stopCmd.Flags().StringVar(&stopAtFlag, "at", "", "schedule the stop at a time, e.g. 18:30 or '2026-09-01 18:30'")

	// destroy command flags
	destroyCmd.Flags().BoolVarP(&destroyForce, "force", "f", false, "skip the confirmation prompt")

	// untrack command flags
	untrackCmd.Flags().BoolVar(&untrackMissingOK, "missing-ok", false, "succeed even if the alias isn't tracked")

	// list command flags
	listCmd.Flags().BoolVarP(&listWatch, "watch", "w", false, "keep the table on screen and refresh it")

	// editor command flags
	codeCmd.Flags().StringVar(&codePathFlag, "path", "", "remote directory to open")
	cursorCmd.Flags().StringVar(&cursorPathFlag, "path", "", "remote directory to open")

	// schedule and template subcommands
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleCancelCmd)
	templateCmd.AddCommand(templateCreateCmd)
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateDeleteCmd)

	// Register all commands
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(untrackCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(schedulerTickCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(cursorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
}
