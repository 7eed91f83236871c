package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/logger"
)

const (
	// DefaultBaseURL is the production GraphQL endpoint.
	DefaultBaseURL = "https://api.runpod.io/graphql"

	// defaultTimeout bounds a single API round trip.
	defaultTimeout = 30 * time.Second
)

// Client talks to the RunPod API. Construct with NewClient; the base URL is
// overridable for tests.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	log          logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint (tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPollInterval changes the readiness polling interval (tests).
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithLogger replaces the client's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a Client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		pollInterval: 5 * time.Second,
		log:          logger.NewEnvLogger("[api]"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// graphQLRequest is the JSON body of every API call.
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do posts a GraphQL query and unmarshals the data payload into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI,
			"Failed to encode API request", "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI,
			"Failed to build API request", "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI,
			"Failed to connect to RunPod API",
			"Check your network connection")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.New(errors.ErrAPI,
			"RunPod API authentication failed",
			"Check your API key in RUNPOD_API_KEY or ~/.config/rp/config.yaml")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrAPI,
			fmt.Sprintf("RunPod API returned HTTP %d", resp.StatusCode),
			"Try again; if it persists, check the RunPod status page")
	}

	var gql graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI,
			"Received unparseable response from RunPod API", "")
	}
	if len(gql.Errors) > 0 {
		msg := gql.Errors[0].Message
		if isNotFound(msg) {
			return errors.New(errors.ErrPod,
				"Pod is invalid or inaccessible",
				"It may have been deleted, or you may not have access to it.")
		}
		return errors.New(errors.ErrAPI, "RunPod API error: "+msg, "")
	}

	if out != nil {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return errors.WrapWithCode(err, errors.ErrAPI,
				"Received unexpected response from RunPod API", "")
		}
	}
	return nil
}

func isNotFound(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")
}

const podFields = `
		id
		name
		desiredStatus
		imageName
		costPerHr
		gpuCount
		volumeInGb
		containerDiskInGb
		uptimeSeconds
		machine { gpuDisplayName gpuTypeId }
		runtime { ports { ip isIpPublic privatePort publicPort } }`

// GetPod fetches a pod by id.
func (c *Client) GetPod(ctx context.Context, podID string) (*Pod, error) {
	query := `query pod($input: PodFilter!) { pod(input: $input) {` + podFields + `
	} }`

	var data struct {
		Pod *Pod `json:"pod"`
	}
	err := c.do(ctx, query, map[string]interface{}{
		"input": map[string]interface{}{"podId": podID},
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Pod == nil || data.Pod.ID == "" {
		return nil, errors.New(errors.ErrPod,
			"Pod is invalid or inaccessible: "+podID,
			"It may have been deleted, or you may not have access to it.")
	}
	return data.Pod, nil
}

// PodStatus returns the normalized status for a pod, mapping lookup failures
// to StatusInvalid.
func (c *Client) PodStatus(ctx context.Context, podID string) Status {
	pod, err := c.GetPod(ctx, podID)
	if err != nil {
		c.log.Debug("status lookup for %s failed: %v", podID, err)
		return StatusInvalid
	}
	return pod.Status()
}

// CreatePod deploys a new on-demand pod and returns it.
func (c *Client) CreatePod(ctx context.Context, req CreateRequest) (*Pod, error) {
	query := `mutation deploy($input: PodFindAndDeployOnDemandInput!) {
	podFindAndDeployOnDemand(input: $input) {` + podFields + `
	} }`

	ports := req.Ports
	if ports == "" {
		ports = "22/tcp"
	}
	containerDisk := req.ContainerDiskGB
	if containerDisk == 0 {
		containerDisk = 20
	}

	var data struct {
		Pod *Pod `json:"podFindAndDeployOnDemand"`
	}
	err := c.do(ctx, query, map[string]interface{}{
		"input": map[string]interface{}{
			"name":              req.Name,
			"imageName":         req.ImageName,
			"gpuTypeId":         req.GPUTypeID,
			"gpuCount":          req.GPUCount,
			"volumeInGb":        req.VolumeGB,
			"containerDiskInGb": containerDisk,
			"volumeMountPath":   "/workspace",
			"supportPublicIp":   true,
			"startSsh":          true,
			"ports":             ports,
		},
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Pod == nil || data.Pod.ID == "" {
		return nil, errors.New(errors.ErrAPI,
			"Could not determine created pod ID from response",
			"The pod may or may not have been created; check the RunPod console")
	}
	return data.Pod, nil
}

// StartPod resumes a stopped pod. Already-running pods are not an error.
func (c *Client) StartPod(ctx context.Context, podID string, gpuCount int) error {
	if gpuCount < 1 {
		gpuCount = 1
	}
	query := `mutation resume($input: PodResumeInput!) {
	podResume(input: $input) { id desiredStatus } }`

	err := c.do(ctx, query, map[string]interface{}{
		"input": map[string]interface{}{"podId": podID, "gpuCount": gpuCount},
	}, nil)
	if err == nil {
		return nil
	}

	if pod, getErr := c.GetPod(ctx, podID); getErr == nil && pod.Status() == StatusRunning {
		return nil
	}
	return errors.WrapWithCode(err, errors.ErrPod,
		"Failed to start pod "+podID, "")
}

// StopPod stops a running pod. Already-stopped pods are not an error.
func (c *Client) StopPod(ctx context.Context, podID string) error {
	query := `mutation stop($input: PodStopInput!) {
	podStop(input: $input) { id desiredStatus } }`

	err := c.do(ctx, query, map[string]interface{}{
		"input": map[string]interface{}{"podId": podID},
	}, nil)
	if err == nil {
		return nil
	}

	if pod, getErr := c.GetPod(ctx, podID); getErr == nil && pod.Status() == StatusStopped {
		return nil
	}
	return errors.WrapWithCode(err, errors.ErrPod,
		"Failed to stop pod "+podID, "")
}

// TerminatePod destroys a pod. A pod that is already gone afterwards counts
// as success even when the mutation itself reported a problem (the API is
// known to return malformed responses on terminate).
func (c *Client) TerminatePod(ctx context.Context, podID string) error {
	query := `mutation terminate($input: PodTerminateInput!) {
	podTerminate(input: $input) }`

	err := c.do(ctx, query, map[string]interface{}{
		"input": map[string]interface{}{"podId": podID},
	}, nil)
	if err == nil {
		return nil
	}

	// Verify whether the pod actually went away.
	if _, getErr := c.GetPod(ctx, podID); errors.IsCode(getErr, errors.ErrPod) {
		c.log.Debug("terminate %s reported %v but pod is gone; treating as success", podID, err)
		return nil
	}
	return errors.WrapWithCode(err, errors.ErrPod,
		"Failed to terminate pod "+podID, "")
}

// GPUTypes lists the available GPU offerings.
func (c *Client) GPUTypes(ctx context.Context) ([]GPUType, error) {
	query := `query gpuTypes { gpuTypes { id displayName memoryInGb } }`

	var data struct {
		GPUTypes []GPUType `json:"gpuTypes"`
	}
	if err := c.do(ctx, query, nil, &data); err != nil {
		return nil, err
	}
	return data.GPUTypes, nil
}

// FindGPUTypeID resolves a user-supplied model name ("A100", "h100") to a
// concrete GPU type id, preferring the highest-memory variant on ties.
func (c *Client) FindGPUTypeID(ctx context.Context, model string) (string, error) {
	gpus, err := c.GPUTypes(ctx)
	if err != nil {
		return "", err
	}

	upper := strings.ToUpper(model)
	var candidates []GPUType
	for _, g := range gpus {
		if strings.Contains(strings.ToUpper(g.ID), upper) ||
			strings.Contains(strings.ToUpper(g.DisplayName), upper) {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return "", errors.New(errors.ErrAPI,
			fmt.Sprintf("Could not find GPU type matching '%s'", model),
			"Try a different value (e.g., A100, H100, L40S)")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MemoryGB > candidates[j].MemoryGB
	})
	return candidates[0].ID, nil
}

// WaitForReady polls until the pod reports runtime network info or the
// timeout elapses. Transient pod-lookup failures keep the loop going; API
// failures abort immediately.
func (c *Client) WaitForReady(ctx context.Context, podID string, timeout time.Duration) (*Pod, error) {
	deadline := time.Now().Add(timeout)

	for {
		pod, err := c.GetPod(ctx, podID)
		if err == nil && pod.Runtime != nil {
			return pod, nil
		}
		if err != nil && !errors.IsCode(err, errors.ErrPod) {
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, errors.New(errors.ErrPod,
				"Timed out waiting for pod to become ready",
				fmt.Sprintf("Pod did not report network info within %s; check the RunPod console", timeout))
		}

		select {
		case <-ctx.Done():
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrPod,
				"Cancelled while waiting for pod to become ready", "")
		case <-time.After(c.pollInterval):
		}
	}
}
