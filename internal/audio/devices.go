package audio

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Device is one capture source a backend can record from.
type Device struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Backend     Backend `json:"backend"`
}

// ListDevices enumerates capture sources for backend. The auto backend
// uses the first installed tool.
func ListDevices(backend Backend) ([]Device, error) {
	if backend == BackendAuto || backend == "" {
		b, err := DetectBackend()
		if err != nil {
			return nil, err
		}
		backend = b
	}

	switch backend {
	case BackendPipeWire:
		return NewPipeWire().ListDevices()
	case BackendPulse:
		output, err := exec.Command("pactl", "list", "short", "sources").Output()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list PulseAudio sources: %v", ErrDeviceUnavailable, err)
		}
		return parsePulseSources(string(output)), nil
	case BackendALSA:
		output, err := exec.Command("arecord", "-l").Output()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list ALSA cards: %v", ErrDeviceUnavailable, err)
		}
		return parseALSACards(string(output)), nil
	default:
		return nil, fmt.Errorf("device listing is not available for backend %q", backend)
	}
}

var alsaCardLine = regexp.MustCompile(`^card (\d+): (\S+) \[(.*)\], device (\d+): (.*) \[(.*)\]$`)

// parseALSACards reads `arecord -l` output.
func parseALSACards(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		m := alsaCardLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		devices = append(devices, Device{
			Name:        fmt.Sprintf("hw:%s,%s", m[1], m[4]),
			Description: m[3] + ": " + m[6],
			Backend:     BackendALSA,
		})
	}
	return devices
}

// parsePulseSources reads `pactl list short sources` output.
func parsePulseSources(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) < 2 || fields[1] == "" {
			continue
		}
		desc := ""
		if len(fields) >= 4 {
			desc = fields[3]
		}
		devices = append(devices, Device{
			Name:        fields[1],
			Description: desc,
			Backend:     BackendPulse,
		})
	}
	return devices
}
