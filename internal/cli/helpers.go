package cli

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/huh"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/registry"
	"github.com/rp-cli/rp/internal/runpod"
	"github.com/rp-cli/rp/internal/sshconfig"
	"github.com/rp-cli/rp/internal/util"
)

// app bundles the per-invocation collaborators. Commands construct one at
// the top of their RunE and thread it through.
type app struct {
	settings *Settings
	store    *registry.Store
	ssh      *sshconfig.Manager
}

func newApp() (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return &app{
		settings: settings,
		store:    registry.NewStore(settings.Registry),
		ssh:      sshconfig.NewManager(settings.SSHConfig),
	}, nil
}

// apiClient builds an authenticated API client, prompting for the key when
// needed.
func (a *app) apiClient() (*runpod.Client, error) {
	key, err := ensureAPIKey(a.settings)
	if err != nil {
		return nil, err
	}
	return runpod.NewClient(key), nil
}

// resolveAlias returns the requested alias and its pod id, showing an
// interactive picker when alias is empty.
func (a *app) resolveAlias(state *registry.State, alias, title string) (string, string, error) {
	aliases := state.AllAliases()
	if len(aliases) == 0 {
		return "", "", errors.New(errors.ErrAlias,
			"No pods tracked",
			"Create one with 'rp create' or adopt one with 'rp track <pod_id>'")
	}

	if alias == "" {
		picked, err := pickAlias(aliases, title)
		if err != nil {
			return "", "", err
		}
		alias = picked
	}

	podID, ok := aliases[alias]
	if !ok {
		var known []string
		for k := range aliases {
			known = append(known, k)
		}
		sort.Strings(known)
		return "", "", errors.New(errors.ErrAlias,
			fmt.Sprintf("Alias '%s' is not tracked", alias),
			"Tracked aliases: "+util.JoinOrNone(known))
	}
	return alias, podID, nil
}

// pickAlias shows a huh select over the tracked aliases.
func pickAlias(aliases map[string]string, title string) (string, error) {
	var names []string
	for k := range aliases {
		names = append(names, k)
	}
	sort.Strings(names)

	options := make([]huh.Option[string], len(names))
	for i, name := range names {
		options[i] = huh.NewOption(fmt.Sprintf("%s - %s", name, aliases[name]), name)
	}

	var picked string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(options...).
				Value(&picked),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrAlias,
			"Couldn't get your selection",
			"Try again or pass the alias explicitly")
	}
	return picked, nil
}

// sshconfigEntry builds the managed-block record for a running pod.
func sshconfigEntry(alias, podID, ip string, port int, identityFile string) sshconfig.HostEntry {
	return sshconfig.HostEntry{
		Alias:        alias,
		PodID:        podID,
		Hostname:     ip,
		Port:         port,
		User:         "root",
		IdentityFile: identityFile,
	}
}

// confirm prompts for a yes/no answer.
func confirm(title, description string) (bool, error) {
	var yes bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&yes),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't get your answer", "")
	}
	return yes, nil
}
