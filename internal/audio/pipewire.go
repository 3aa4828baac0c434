package audio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
)

// PipeWire enumerates capture sources through pw-link.
type PipeWire struct{}

func NewPipeWire() *PipeWire {
	return &PipeWire{}
}

// ListPorts returns all output ports (things that can be recorded from).
func (pw *PipeWire) ListPorts() ([]string, error) {
	cmd := exec.Command("pw-link", "-o")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list PipeWire ports: %v", ErrDeviceUnavailable, err)
	}

	return parsePortList(string(output)), nil
}

// ListDevices groups output ports by node. The node name is what
// pw-record accepts as --target.
func (pw *PipeWire) ListDevices() ([]Device, error) {
	ports, err := pw.ListPorts()
	if err != nil {
		return nil, err
	}
	return devicesFromPorts(ports), nil
}

// ValidateNode checks that a node exists and none of its ports is
// registered twice.
func (pw *PipeWire) ValidateNode(node string) error {
	ports, err := pw.ListPorts()
	if err != nil {
		return err
	}
	return validateNodeInList(node, ports)
}

func parsePortList(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Input ports:") || strings.HasPrefix(line, "Output ports:") {
			continue
		}
		// pw-link prints link targets indented with |-> / |<-
		if strings.HasPrefix(line, "|") {
			continue
		}
		ports = append(ports, line)
	}
	return ports
}

// splitPort splits "node:port" on the last colon.
func splitPort(port string) (node, name string) {
	i := strings.LastIndex(port, ":")
	if i < 0 {
		return port, ""
	}
	return port[:i], port[i+1:]
}

func devicesFromPorts(ports []string) []Device {
	byNode := make(map[string][]string)
	var order []string
	for _, port := range ports {
		node, name := splitPort(port)
		if _, seen := byNode[node]; !seen {
			order = append(order, node)
		}
		byNode[node] = append(byNode[node], name)
	}

	devices := make([]Device, 0, len(order))
	for _, node := range order {
		names := byNode[node]
		sort.Strings(names)
		devices = append(devices, Device{
			Name:        node,
			Description: strings.Join(names, ", "),
			Backend:     BackendPipeWire,
		})
	}
	return devices
}

func validateNodeInList(node string, ports []string) error {
	if node == "" {
		return nil
	}

	found := false
	for _, port := range ports {
		n, _ := splitPort(port)
		if n != node {
			continue
		}
		found = true
		if dups := findPortDuplicatesInList(port, ports); len(dups) > 1 {
			slog.Debug("Duplicate PipeWire port", "port", port, "count", len(dups))
			return fmt.Errorf("duplicate sources detected for '%s': %v. Please close conflicting applications", port, dups)
		}
	}

	if !found {
		return fmt.Errorf("%w: node not found: %s", ErrDeviceUnavailable, node)
	}
	return nil
}

// findPortDuplicatesInList finds all ports with exactly the same name
func findPortDuplicatesInList(portName string, allPorts []string) []string {
	var duplicates []string
	for _, port := range allPorts {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}
	return duplicates
}
