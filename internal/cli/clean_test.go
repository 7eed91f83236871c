package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rp-cli/rp/internal/logger"
	"github.com/rp-cli/rp/internal/registry"
	"github.com/rp-cli/rp/internal/runpod"
	"github.com/rp-cli/rp/internal/schedule"
	"github.com/rp-cli/rp/internal/sshconfig"
)

// podLookupServer answers pod queries: ids in known get a minimal pod payload
// with the given desired status, everything else a not-found error.
func podLookupServer(t *testing.T, known map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				Input struct {
					PodID string `json:"podId"`
				} `json:"input"`
			} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		desired, ok := known[req.Variables.Input.PodID]
		if !ok {
			fmt.Fprint(w, `{"errors":[{"message":"pod not found"}]}`)
			return
		}
		fmt.Fprintf(w, `{"data":{"pod":{"id":%q,"desiredStatus":%q}}}`,
			req.Variables.Input.PodID, desired)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCleanApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config")
	regPath := filepath.Join(dir, "pods.json")
	return &app{
		settings: &Settings{SSHConfig: cfgPath, Registry: regPath},
		store:    registry.NewStore(regPath),
		ssh:      sshconfig.NewManager(cfgPath),
	}
}

func TestCleanStaleDropsGonePods(t *testing.T) {
	a := newCleanApp(t)
	now := time.Now()

	// Two tracked pods, one finished task, one still pending.
	state := registry.NewState()
	state.AddAlias("live", "pod-live", false)
	state.AddAlias("gone", "pod-gone", false)
	done := schedule.NewTask("stop", "gone", now, now)
	done.Status = schedule.StatusCompleted
	state.AddTask(done)
	state.AddTask(schedule.NewTask("stop", "live", now.Add(time.Hour), now))
	require.NoError(t, a.store.Save(state))

	// User-authored block plus a managed block per pod.
	require.NoError(t, os.WriteFile(a.ssh.Path(),
		[]byte("Host personal\n    HostName example.com\n"), 0o600))
	require.NoError(t, a.ssh.CreateOrUpdate(sshconfigEntry("live", "pod-live", "1.2.3.4", 22, ""), now))
	require.NoError(t, a.ssh.CreateOrUpdate(sshconfigEntry("gone", "pod-gone", "5.6.7.8", 22, ""), now))

	srv := podLookupServer(t, map[string]string{"pod-live": "RUNNING"})
	client := runpod.NewClient("test-key",
		runpod.WithBaseURL(srv.URL), runpod.WithLogger(logger.Noop()))

	out, err := a.cleanStale(context.Background(), client)
	require.NoError(t, err)

	assert.Equal(t, []string{"gone"}, out.stale)
	assert.True(t, out.valid["live"])
	assert.Equal(t, 1, out.prunedBlocks)
	assert.Equal(t, 1, out.cleanedTasks)

	after, err := a.store.Load()
	require.NoError(t, err)
	_, tracked := after.PodID("gone")
	assert.False(t, tracked)
	_, tracked = after.PodID("live")
	assert.True(t, tracked)
	require.Len(t, after.Tasks, 1)
	assert.Equal(t, schedule.StatusPending, after.Tasks[0].Status)

	managed, err := a.ssh.ManagedAliases()
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, managed)

	// The user-authored block is never pruned.
	raw, err := os.ReadFile(a.ssh.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Host personal")
}

func TestAutoCleanSwallowsErrors(t *testing.T) {
	a := newCleanApp(t)

	// A registry path that is a directory makes every load fail.
	a.store = registry.NewStore(t.TempDir())

	srv := podLookupServer(t, nil)
	client := runpod.NewClient("test-key",
		runpod.WithBaseURL(srv.URL), runpod.WithLogger(logger.Noop()))

	// Must not panic or surface the failure.
	a.autoClean(context.Background(), client)
}
