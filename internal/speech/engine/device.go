package engine

import (
	"os"
	"os/exec"
	"runtime"
)

// Device is where a model executes.
type Device string

const (
	DeviceCUDA Device = "cuda:0"
	DeviceMPS  Device = "mps"
	DeviceCPU  Device = "cpu"
)

// Precision is the numeric type used for model weights.
type Precision string

const (
	PrecisionBFloat16 Precision = "bfloat16"
	PrecisionFloat32  Precision = "float32"
)

// DeviceProbe reports which accelerators the host offers.
type DeviceProbe interface {
	// HasDedicated reports a discrete CUDA accelerator.
	HasDedicated() bool
	// HasIntegrated reports an integrated accelerator (Apple MPS).
	HasIntegrated() bool
}

// SelectDevice picks the best available device. Reduced precision is only
// used on the dedicated accelerator.
func SelectDevice(p DeviceProbe) (Device, Precision) {
	switch {
	case p.HasDedicated():
		return DeviceCUDA, PrecisionBFloat16
	case p.HasIntegrated():
		return DeviceMPS, PrecisionFloat32
	default:
		return DeviceCPU, PrecisionFloat32
	}
}

// SystemProbe inspects the local machine.
type SystemProbe struct{}

func (SystemProbe) HasDedicated() bool {
	if os.Getenv("CUDA_VISIBLE_DEVICES") == "-1" {
		return false
	}
	if _, err := os.Stat("/dev/nvidiactl"); err == nil {
		return true
	}
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

func (SystemProbe) HasIntegrated() bool {
	return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
}

// StaticProbe is a DeviceProbe with fixed answers.
type StaticProbe struct {
	Dedicated  bool
	Integrated bool
}

func (s StaticProbe) HasDedicated() bool  { return s.Dedicated }
func (s StaticProbe) HasIntegrated() bool { return s.Integrated }
