package engine

import "testing"

func TestSelectDevice(t *testing.T) {
	tests := []struct {
		name      string
		probe     StaticProbe
		device    Device
		precision Precision
	}{
		{"cuda wins", StaticProbe{Dedicated: true, Integrated: true}, DeviceCUDA, PrecisionBFloat16},
		{"mps", StaticProbe{Integrated: true}, DeviceMPS, PrecisionFloat32},
		{"cpu", StaticProbe{}, DeviceCPU, PrecisionFloat32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, p := SelectDevice(tt.probe)
			if d != tt.device || p != tt.precision {
				t.Errorf("SelectDevice = %s/%s, want %s/%s", d, p, tt.device, tt.precision)
			}
		})
	}
}

func TestSamplesDuration(t *testing.T) {
	s := Samples{Data: make([]float32, 48000), SampleRate: 24000}
	if got := s.Duration(); got != 2 {
		t.Errorf("Duration = %v, want 2", got)
	}
	if got := (Samples{Data: make([]float32, 10)}).Duration(); got != 0 {
		t.Errorf("Duration without rate = %v, want 0", got)
	}
}
