package runpod

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/logger"
)

// fakeAPI is a scripted GraphQL endpoint: each incoming request pops the next
// scripted response. Query text is recorded for assertions.
type fakeAPI struct {
	t         *testing.T
	responses []string
	requests  []graphQLRequest
	status    int
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	f.requests = append(f.requests, req)

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	require.NotEmpty(f.t, f.responses, "fakeAPI ran out of scripted responses")
	resp := f.responses[0]
	f.responses = f.responses[1:]
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func newTestClient(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithPollInterval(time.Millisecond),
		WithLogger(logger.Noop()))
}

const runningPodJSON = `{
	"id": "pod123",
	"name": "dev",
	"desiredStatus": "RUNNING",
	"imageName": "runpod/pytorch",
	"costPerHr": 1.99,
	"gpuCount": 1,
	"volumeInGb": 50,
	"containerDiskInGb": 20,
	"uptimeSeconds": 120,
	"machine": {"gpuDisplayName": "NVIDIA A100 80GB", "gpuTypeId": "NVIDIA A100 80GB PCIe"},
	"runtime": {"ports": [
		{"ip": "1.2.3.4", "isIpPublic": true, "privatePort": 22, "publicPort": 40022}
	]}
}`

func TestGetPod(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"data": {"pod": ` + runningPodJSON + `}}`,
	}}
	c := newTestClient(t, f)

	pod, err := c.GetPod(context.Background(), "pod123")
	require.NoError(t, err)
	assert.Equal(t, "pod123", pod.ID)
	assert.Equal(t, StatusRunning, pod.Status())

	ip, port, ok := pod.SSHAddress()
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4", ip)
	assert.Equal(t, 40022, port)

	// Authorization header and variables are wired through.
	require.Len(t, f.requests, 1)
	assert.Contains(t, f.requests[0].Query, "pod(input: $input)")
	input := f.requests[0].Variables["input"].(map[string]interface{})
	assert.Equal(t, "pod123", input["podId"])
}

func TestGetPodNotFound(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"errors": [{"message": "pod not found"}]}`,
	}}
	c := newTestClient(t, f)

	_, err := c.GetPod(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPod))
}

func TestGetPodNullData(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"data": {"pod": null}}`,
	}}
	c := newTestClient(t, f)

	_, err := c.GetPod(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPod))
}

func TestGetPodAuthFailure(t *testing.T) {
	f := &fakeAPI{status: http.StatusUnauthorized}
	c := newTestClient(t, f)

	_, err := c.GetPod(context.Background(), "pod123")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAPI))
	assert.Contains(t, err.Error(), "authentication")
}

func TestGetPodServerError(t *testing.T) {
	f := &fakeAPI{status: http.StatusBadGateway}
	c := newTestClient(t, f)

	_, err := c.GetPod(context.Background(), "pod123")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAPI))
	assert.Contains(t, err.Error(), "502")
}

func TestPodStatus(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"data": {"pod": ` + runningPodJSON + `}}`,
		`{"errors": [{"message": "pod does not exist"}]}`,
	}}
	c := newTestClient(t, f)

	assert.Equal(t, StatusRunning, c.PodStatus(context.Background(), "pod123"))
	assert.Equal(t, StatusInvalid, c.PodStatus(context.Background(), "gone"))
}

func TestCreatePod(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"data": {"podFindAndDeployOnDemand": {"id": "new1", "name": "dev", "desiredStatus": "RUNNING"}}}`,
	}}
	c := newTestClient(t, f)

	pod, err := c.CreatePod(context.Background(), CreateRequest{
		Name:      "dev",
		ImageName: "runpod/pytorch",
		GPUTypeID: "NVIDIA A100 80GB PCIe",
		GPUCount:  2,
		VolumeGB:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, "new1", pod.ID)

	input := f.requests[0].Variables["input"].(map[string]interface{})
	assert.Equal(t, "/workspace", input["volumeMountPath"])
	assert.Equal(t, true, input["supportPublicIp"])
	assert.Equal(t, true, input["startSsh"])
	assert.Equal(t, "22/tcp", input["ports"])
	assert.Equal(t, float64(2), input["gpuCount"])
	// Container disk defaults when unset.
	assert.Equal(t, float64(20), input["containerDiskInGb"])
}

func TestCreatePodMissingID(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"data": {"podFindAndDeployOnDemand": null}}`,
	}}
	c := newTestClient(t, f)

	_, err := c.CreatePod(context.Background(), CreateRequest{Name: "dev"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAPI))
}

func TestStartPodIdempotent(t *testing.T) {
	// Resume fails, but the follow-up lookup shows the pod already running.
	f := &fakeAPI{responses: []string{
		`{"errors": [{"message": "pod is already running"}]}`,
		`{"data": {"pod": ` + runningPodJSON + `}}`,
	}}
	c := newTestClient(t, f)

	err := c.StartPod(context.Background(), "pod123", 1)
	assert.NoError(t, err)
	assert.Len(t, f.requests, 2)
}

func TestStartPodFailure(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"errors": [{"message": "no gpu available"}]}`,
		`{"data": {"pod": {"id": "pod123", "desiredStatus": "EXITED"}}}`,
	}}
	c := newTestClient(t, f)

	err := c.StartPod(context.Background(), "pod123", 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPod))
}

func TestStopPodIdempotent(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"errors": [{"message": "pod is not running"}]}`,
		`{"data": {"pod": {"id": "pod123", "desiredStatus": "EXITED"}}}`,
	}}
	c := newTestClient(t, f)

	err := c.StopPod(context.Background(), "pod123")
	assert.NoError(t, err)
}

func TestStopPodSuccess(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"data": {"podStop": {"id": "pod123", "desiredStatus": "EXITED"}}}`,
	}}
	c := newTestClient(t, f)

	require.NoError(t, c.StopPod(context.Background(), "pod123"))
	assert.Contains(t, f.requests[0].Query, "podStop")
}

func TestTerminatePodToleratesMalformedResponse(t *testing.T) {
	// Terminate returns garbage, but the pod is gone afterwards.
	f := &fakeAPI{responses: []string{
		`{"errors": [{"message": "internal error"}]}`,
		`{"errors": [{"message": "pod not found"}]}`,
	}}
	c := newTestClient(t, f)

	err := c.TerminatePod(context.Background(), "pod123")
	assert.NoError(t, err)
}

func TestTerminatePodFailure(t *testing.T) {
	f := &fakeAPI{responses: []string{
		`{"errors": [{"message": "internal error"}]}`,
		`{"data": {"pod": ` + runningPodJSON + `}}`,
	}}
	c := newTestClient(t, f)

	err := c.TerminatePod(context.Background(), "pod123")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPod))
}

func TestFindGPUTypeID(t *testing.T) {
	gpuList := `{"data": {"gpuTypes": [
		{"id": "NVIDIA A100 80GB PCIe", "displayName": "A100 80GB", "memoryInGb": 80},
		{"id": "NVIDIA A100-SXM4-40GB", "displayName": "A100 SXM 40GB", "memoryInGb": 40},
		{"id": "NVIDIA L40S", "displayName": "L40S", "memoryInGb": 48}
	]}}`

	t.Run("prefers highest memory on ties", func(t *testing.T) {
		f := &fakeAPI{responses: []string{gpuList}}
		c := newTestClient(t, f)

		id, err := c.FindGPUTypeID(context.Background(), "a100")
		require.NoError(t, err)
		assert.Equal(t, "NVIDIA A100 80GB PCIe", id)
	})

	t.Run("matches display name", func(t *testing.T) {
		f := &fakeAPI{responses: []string{gpuList}}
		c := newTestClient(t, f)

		id, err := c.FindGPUTypeID(context.Background(), "l40s")
		require.NoError(t, err)
		assert.Equal(t, "NVIDIA L40S", id)
	})

	t.Run("no match", func(t *testing.T) {
		f := &fakeAPI{responses: []string{gpuList}}
		c := newTestClient(t, f)

		_, err := c.FindGPUTypeID(context.Background(), "tpu")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrAPI))
	})
}

func TestWaitForReady(t *testing.T) {
	noRuntime := `{"data": {"pod": {"id": "pod123", "desiredStatus": "RUNNING", "runtime": null}}}`

	t.Run("ready after polling", func(t *testing.T) {
		f := &fakeAPI{responses: []string{
			noRuntime,
			noRuntime,
			`{"data": {"pod": ` + runningPodJSON + `}}`,
		}}
		c := newTestClient(t, f)

		pod, err := c.WaitForReady(context.Background(), "pod123", time.Second)
		require.NoError(t, err)
		require.NotNil(t, pod.Runtime)
		assert.Len(t, f.requests, 3)
	})

	t.Run("timeout", func(t *testing.T) {
		f := &fakeAPI{responses: []string{noRuntime, noRuntime, noRuntime, noRuntime, noRuntime}}
		c := newTestClient(t, f)

		_, err := c.WaitForReady(context.Background(), "pod123", 2*time.Millisecond)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrPod))
		assert.Contains(t, err.Error(), "Timed out")
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := &fakeAPI{responses: []string{noRuntime, noRuntime, noRuntime}}
		c := newTestClient(t, f)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.WaitForReady(ctx, "pod123", time.Second)
		require.Error(t, err)
	})
}

func TestPodGPUModel(t *testing.T) {
	pod := &Pod{
		GPUCount: 2,
		Machine:  &Machine{GPUDisplayName: "NVIDIA A100 80GB"},
	}
	assert.Equal(t, "2xA10080GB", pod.GPUModel())

	pod = &Pod{GPUCount: 1, Machine: &Machine{GPUDisplayName: "RTX 4090"}}
	assert.Equal(t, "RTX4090", pod.GPUModel())

	pod = &Pod{}
	assert.Equal(t, "", pod.GPUModel())
}

func TestPodStatusMapping(t *testing.T) {
	assert.Equal(t, StatusRunning, (&Pod{DesiredStatus: "RUNNING"}).Status())
	assert.Equal(t, StatusStopped, (&Pod{DesiredStatus: "EXITED"}).Status())
	assert.Equal(t, StatusInvalid, (&Pod{DesiredStatus: "TERMINATED"}).Status())
	assert.Equal(t, StatusInvalid, (&Pod{}).Status())
}

func TestPodSSHAddress(t *testing.T) {
	t.Run("no runtime", func(t *testing.T) {
		_, _, ok := (&Pod{}).SSHAddress()
		assert.False(t, ok)
	})

	t.Run("private port 22 with public ip", func(t *testing.T) {
		pod := &Pod{Runtime: &Runtime{Ports: []Port{
			{IP: "10.0.0.5", IsIPPublic: false, PrivatePort: 22, PublicPort: 22},
			{IP: "5.6.7.8", IsIPPublic: true, PrivatePort: 22, PublicPort: 41234},
		}}}
		ip, port, ok := pod.SSHAddress()
		require.True(t, ok)
		assert.Equal(t, "5.6.7.8", ip)
		assert.Equal(t, 41234, port)
	})

	t.Run("no ssh port exposed", func(t *testing.T) {
		pod := &Pod{Runtime: &Runtime{Ports: []Port{
			{IP: "5.6.7.8", IsIPPublic: true, PrivatePort: 8888, PublicPort: 41235},
		}}}
		_, _, ok := pod.SSHAddress()
		assert.False(t, ok)
	})
}
