package cli

import (
	"fmt"
	"sort"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/registry"
	"github.com/rp-cli/rp/internal/ui"
)

type templateCreateOptions struct {
	GPU     string
	Storage string
	Disk    string
	Image   string
	Config  []string
}

func templateCreateCommand(name, aliasTemplate string, opts templateCreateOptions) error {
	if opts.GPU == "" || opts.Storage == "" {
		return errors.New(errors.ErrConfig,
			"Both --gpu and --storage are required",
			"Example: rp template create small \"dev{i}\" --gpu 1xA100 --storage 50GB")
	}

	// Validate the specs now so create-from-template can't fail on them later.
	if _, err := ParseGPUSpec(opts.GPU); err != nil {
		return err
	}
	if _, err := ParseStorageSpec(opts.Storage); err != nil {
		return err
	}
	if opts.Disk != "" {
		if _, err := ParseStorageSpec(opts.Disk); err != nil {
			return err
		}
	}
	cfg, err := ParseConfigFlags(opts.Config)
	if err != nil {
		return err
	}

	tmpl := registry.Template{
		Identifier:        name,
		AliasTemplate:     aliasTemplate,
		GPUSpec:           opts.GPU,
		StorageSpec:       opts.Storage,
		ContainerDiskSpec: opts.Disk,
		Image:             opts.Image,
		Config:            cfg,
	}
	if err := tmpl.Validate(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid template",
			"The alias template must contain {i}, e.g. \"dev{i}\"")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	var added bool
	err = a.store.Update(func(s *registry.State) (bool, error) {
		added = s.AddTemplate(tmpl, false)
		return added, nil
	})
	if err != nil {
		return err
	}
	if !added {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Template '%s' already exists", name),
			"Delete it first with 'rp template delete "+name+"'")
	}

	fmt.Printf("%s Created template %s (aliases like %s)\n",
		ui.SymbolSuccess, name, tmpl.ExpandAlias(1))
	return nil
}

func templateListCommand() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	state, err := a.store.Load()
	if err != nil {
		return err
	}

	if len(state.Templates) == 0 {
		fmt.Println("No templates. Create one with 'rp template create'.")
		return nil
	}

	var names []string
	for name := range state.Templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := state.Templates[name]
		line := fmt.Sprintf("%s  %s  %s %s", t.Identifier, t.AliasTemplate, t.GPUSpec, t.StorageSpec)
		if t.Image != "" {
			line += "  " + t.Image
		}
		fmt.Println(line)
	}
	return nil
}

func templateDeleteCommand(name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var removed bool
	err = a.store.Update(func(s *registry.State) (bool, error) {
		removed = s.RemoveTemplate(name)
		return removed, nil
	})
	if err != nil {
		return err
	}
	if !removed {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Template '%s' not found", name),
			"List templates with 'rp template list'")
	}

	fmt.Printf("%s Deleted template %s\n", ui.SymbolSuccess, name)
	return nil
}
