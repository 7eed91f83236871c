package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/registry"
	"github.com/rp-cli/rp/internal/ui"
)

// defaultRemotePath is opened when no per-pod path is configured.
const defaultRemotePath = "/workspace"

func shellCommand(alias string) error {
	state, err := connectTarget(alias, "Select pod to connect to")
	if err != nil {
		return err
	}
	alias = state.alias

	args := []string{alias}
	if path := remotePath(state.reg, alias, ""); path != defaultRemotePath {
		args = append(args, "-t", fmt.Sprintf("cd %q && exec $SHELL -l", path))
	}

	return runInteractive("ssh", args...)
}

// editorCommand attaches VS Code or Cursor to the pod over its SSH alias.
func editorCommand(alias, editor, pathFlag string) error {
	state, err := connectTarget(alias, "Select pod to open")
	if err != nil {
		return err
	}
	alias = state.alias

	if _, err := exec.LookPath(editor); err != nil {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' is not on your PATH", editor),
			fmt.Sprintf("Install the %s CLI and try again", editor))
	}

	path := remotePath(state.reg, alias, pathFlag)
	return runInteractive(editor,
		"--remote", "ssh-remote+"+alias, path)
}

// connectState carries what shell/code/cursor need after alias resolution.
type connectState struct {
	alias string
	reg   *registry.State
}

// connectTarget resolves the alias and verifies a managed block exists, so
// the ssh/editor invocation won't fail on an unknown host.
func connectTarget(alias, title string) (*connectState, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	state, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	alias, _, err = a.resolveAlias(state, alias, title)
	if err != nil {
		return nil, err
	}

	entry, err := a.ssh.Get(alias)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errors.New(errors.ErrSSH,
			fmt.Sprintf("No managed SSH block for '%s'", alias),
			"Start the pod first: rp start "+alias)
	}

	return &connectState{alias: alias, reg: state}, nil
}

// remotePath picks the directory to open: flag, per-pod config, default.
func remotePath(state *registry.State, alias, flag string) string {
	if flag != "" {
		return flag
	}
	if cfg, ok := state.Config(alias); ok && cfg.Path != "" {
		return cfg.Path
	}
	return defaultRemotePath
}

// runInteractive runs a command wired to the user's terminal.
func runInteractive(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// The child already reported its failure on stderr.
			os.Exit(cmd.ProcessState.ExitCode())
		}
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't run %s", name), "")
	}
	return nil
}

// splitConfigArgs separates bare keys (reads) from key=value pairs (writes),
// rejecting unknown bare keys up front.
func splitConfigArgs(args []string) (gets, sets []string, err error) {
	for _, arg := range args {
		if strings.Contains(arg, "=") {
			sets = append(sets, arg)
			continue
		}
		if arg != "path" {
			return nil, nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Unknown config key '%s'", arg),
				"Supported keys: path")
		}
		gets = append(gets, arg)
	}
	return gets, sets, nil
}

func configCommand(alias string, args []string) error {
	gets, sets, err := splitConfigArgs(args)
	if err != nil {
		return err
	}
	// Validate before persisting anything.
	if _, err := ParseConfigFlags(sets); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}
	alias, _, err = a.resolveAlias(state, alias, "Select pod to configure")
	if err != nil {
		return err
	}

	if len(sets) > 0 {
		err = a.store.Update(func(s *registry.State) (bool, error) {
			for _, kv := range sets {
				cfg, err := ParseConfigFlags([]string{kv})
				if err != nil {
					return false, err
				}
				if cfg.Path != "" {
					if err := s.SetConfigValue(alias, "path", cfg.Path); err != nil {
						return false, err
					}
				}
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s Updated config for %s\n", ui.SymbolSuccess, alias)
	}

	// Reads report the effective value, defaults included, after any writes.
	if len(gets) > 0 {
		state, err = a.store.Load()
		if err != nil {
			return err
		}
		for _, key := range gets {
			switch key {
			case "path":
				fmt.Printf("path = %s\n", remotePath(state, alias, ""))
			}
		}
	}
	return nil
}
