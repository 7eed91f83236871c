// Package runpod is a thin client for the RunPod GraphQL API covering the
// pod lifecycle operations rp needs.
package runpod

import (
	"strconv"
	"strings"
)

// Status is the normalized pod state rp works with.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusInvalid Status = "invalid"
)

// Machine carries the GPU hardware info nested in a pod response.
type Machine struct {
	GPUDisplayName string `json:"gpuDisplayName"`
	GPUTypeID      string `json:"gpuTypeId"`
}

// Port is one entry of a running pod's port mapping table.
type Port struct {
	IP          string `json:"ip"`
	IsIPPublic  bool   `json:"isIpPublic"`
	PrivatePort int    `json:"privatePort"`
	PublicPort  int    `json:"publicPort"`
}

// Runtime is present only once the pod has started and has network info.
type Runtime struct {
	Ports []Port `json:"ports"`
}

// Pod mirrors the API's pod object.
type Pod struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DesiredStatus   string   `json:"desiredStatus"`
	ImageName       string   `json:"imageName"`
	CostPerHour     float64  `json:"costPerHr"`
	GPUCount        int      `json:"gpuCount"`
	VolumeGB        int      `json:"volumeInGb"`
	ContainerDiskGB int      `json:"containerDiskInGb"`
	UptimeSeconds   int      `json:"uptimeSeconds"`
	Machine         *Machine `json:"machine"`
	Runtime         *Runtime `json:"runtime"`
}

// Status normalizes the API's desiredStatus field.
func (p *Pod) Status() Status {
	switch p.DesiredStatus {
	case "RUNNING":
		return StatusRunning
	case "EXITED":
		return StatusStopped
	default:
		return StatusInvalid
	}
}

// GPUModel returns a compact GPU description like "2xH100PCIe", or "" when
// hardware info is unavailable.
func (p *Pod) GPUModel() string {
	if p.Machine == nil || p.GPUCount == 0 {
		return ""
	}
	model := p.Machine.GPUDisplayName
	if model == "" {
		model = p.Machine.GPUTypeID
	}
	if model == "" {
		return ""
	}
	// "NVIDIA H100 PCIe" -> "H100PCIe"
	model = strings.ReplaceAll(strings.TrimPrefix(model, "NVIDIA "), " ", "")
	if p.GPUCount > 1 {
		return strconv.Itoa(p.GPUCount) + "x" + model
	}
	return model
}

// SSHAddress extracts the public SSH endpoint: the first runtime port that
// maps container port 22 to a public IP. ok is false until the pod is ready.
func (p *Pod) SSHAddress() (ip string, port int, ok bool) {
	if p.Runtime == nil {
		return "", 0, false
	}
	for _, pt := range p.Runtime.Ports {
		if pt.PrivatePort == 22 && pt.IsIPPublic {
			return pt.IP, pt.PublicPort, true
		}
	}
	return "", 0, false
}

// GPUType is one available GPU offering.
type GPUType struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	MemoryGB    float64 `json:"memoryInGb"`
}

// CreateRequest holds the parameters for deploying a new pod.
type CreateRequest struct {
	Name            string
	ImageName       string
	GPUTypeID       string
	GPUCount        int
	VolumeGB        int
	ContainerDiskGB int
	Ports           string // e.g. "22/tcp,8888/http"
}
