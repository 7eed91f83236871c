// Package registry persists the alias → pod mapping, pod templates, and
// scheduled tasks as a single JSON state file.
package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/rp-cli/rp/internal/schedule"
)

// PodConfig holds per-pod settings.
type PodConfig struct {
	// Path is the default working directory opened by shell/code/cursor.
	Path string `json:"path,omitempty"`
}

// PodMetadata is what the registry knows about one tracked pod.
type PodMetadata struct {
	PodID  string    `json:"pod_id"`
	Config PodConfig `json:"config,omitempty"`
}

// Template describes a reusable pod shape. AliasTemplate must contain the
// "{i}" placeholder, expanded with the lowest unused index at create time.
type Template struct {
	Identifier        string    `json:"identifier"`
	AliasTemplate     string    `json:"alias_template"`
	GPUSpec           string    `json:"gpu_spec"`
	StorageSpec       string    `json:"storage_spec"`
	ContainerDiskSpec string    `json:"container_disk_spec,omitempty"`
	Image             string    `json:"image,omitempty"`
	Config            PodConfig `json:"config,omitempty"`
}

// Validate checks template invariants.
func (t Template) Validate() error {
	if t.Identifier == "" {
		return fmt.Errorf("template identifier cannot be empty")
	}
	if !strings.Contains(t.AliasTemplate, "{i}") {
		return fmt.Errorf("alias template must contain the '{i}' placeholder")
	}
	return nil
}

// ExpandAlias substitutes the index into the alias template.
func (t Template) ExpandAlias(i int) string {
	return strings.ReplaceAll(t.AliasTemplate, "{i}", fmt.Sprintf("%d", i))
}

// State is the full registry contents. Aliases is the legacy flat
// alias → pod-id map; entries found there are migrated into Pods on write.
type State struct {
	Aliases   map[string]string      `json:"aliases,omitempty"`
	Pods      map[string]PodMetadata `json:"pod_metadata,omitempty"`
	Tasks     []schedule.Task        `json:"scheduled_tasks,omitempty"`
	Templates map[string]Template    `json:"pod_templates,omitempty"`
}

// NewState returns an empty, fully initialized state.
func NewState() *State {
	return &State{
		Aliases:   make(map[string]string),
		Pods:      make(map[string]PodMetadata),
		Templates: make(map[string]Template),
	}
}

// AddAlias records an alias → pod mapping. Returns false when the alias
// already exists and force is not set. A legacy entry for the same alias is
// migrated to the new format.
func (s *State) AddAlias(alias, podID string, force bool) bool {
	_, inLegacy := s.Aliases[alias]
	_, inPods := s.Pods[alias]
	if (inLegacy || inPods) && !force {
		return false
	}
	delete(s.Aliases, alias)
	s.Pods[alias] = PodMetadata{PodID: podID}
	return true
}

// RemoveAlias deletes an alias from both formats, returning the pod id when
// the alias was tracked.
func (s *State) RemoveAlias(alias string) (string, bool) {
	if meta, ok := s.Pods[alias]; ok {
		delete(s.Pods, alias)
		return meta.PodID, true
	}
	if id, ok := s.Aliases[alias]; ok {
		delete(s.Aliases, alias)
		return id, true
	}
	return "", false
}

// PodID resolves an alias to its pod id, checking the new format first.
func (s *State) PodID(alias string) (string, bool) {
	if meta, ok := s.Pods[alias]; ok {
		return meta.PodID, true
	}
	id, ok := s.Aliases[alias]
	return id, ok
}

// AllAliases merges both formats into one alias → pod-id map.
func (s *State) AllAliases() map[string]string {
	all := make(map[string]string, len(s.Aliases)+len(s.Pods))
	for alias, id := range s.Aliases {
		all[alias] = id
	}
	for alias, meta := range s.Pods {
		all[alias] = meta.PodID
	}
	return all
}

// Config returns the per-pod config for an alias, when present.
func (s *State) Config(alias string) (PodConfig, bool) {
	meta, ok := s.Pods[alias]
	return meta.Config, ok
}

// SetConfigValue sets one per-pod config key. A legacy alias is migrated to
// the new format first. Returns an error for unknown aliases or keys.
func (s *State) SetConfigValue(alias, key, value string) error {
	if id, ok := s.Aliases[alias]; ok {
		delete(s.Aliases, alias)
		s.Pods[alias] = PodMetadata{PodID: id}
	}
	meta, ok := s.Pods[alias]
	if !ok {
		return fmt.Errorf("unknown alias: %s", alias)
	}

	switch key {
	case "path":
		meta.Config.Path = value
	default:
		return fmt.Errorf("unknown config key: %s (supported: path)", key)
	}
	s.Pods[alias] = meta
	return nil
}

// AddTask appends a scheduled task.
func (s *State) AddTask(task schedule.Task) {
	s.Tasks = append(s.Tasks, task)
}

// PendingTasks returns tasks due at now, in creation order.
func (s *State) PendingTasks(now time.Time) []schedule.Task {
	var due []schedule.Task
	for _, t := range s.Tasks {
		if t.Due(now) {
			due = append(due, t)
		}
	}
	return due
}

// CancelTask marks a pending task cancelled. Returns false when no pending
// task has the id.
func (s *State) CancelTask(id string) bool {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id && s.Tasks[i].Status == schedule.StatusPending {
			s.Tasks[i].Status = schedule.StatusCancelled
			return true
		}
	}
	return false
}

// CleanFinishedTasks drops completed and cancelled tasks, returning the count
// removed.
func (s *State) CleanFinishedTasks() int {
	kept := s.Tasks[:0]
	for _, t := range s.Tasks {
		if t.Status != schedule.StatusCompleted && t.Status != schedule.StatusCancelled {
			kept = append(kept, t)
		}
	}
	removed := len(s.Tasks) - len(kept)
	s.Tasks = kept
	return removed
}

// AddTemplate stores a template. Returns false when the identifier is taken
// and force is not set.
func (s *State) AddTemplate(t Template, force bool) bool {
	if _, exists := s.Templates[t.Identifier]; exists && !force {
		return false
	}
	s.Templates[t.Identifier] = t
	return true
}

// Template fetches a template by identifier.
func (s *State) Template(identifier string) (Template, bool) {
	t, ok := s.Templates[identifier]
	return t, ok
}

// RemoveTemplate deletes a template, reporting whether it existed.
func (s *State) RemoveTemplate(identifier string) bool {
	if _, ok := s.Templates[identifier]; !ok {
		return false
	}
	delete(s.Templates, identifier)
	return true
}

// NextAliasIndex finds the lowest i >= 1 whose expansion of the alias
// template is not already tracked.
func (s *State) NextAliasIndex(t Template) int {
	all := s.AllAliases()
	for i := 1; ; i++ {
		if _, taken := all[t.ExpandAlias(i)]; !taken {
			return i
		}
	}
}
