package model

import (
	"fmt"
	"strings"
)

// Capability names a specialist refactoring pass. It doubles as the task queue
// routing key and the merge precedence key.
type Capability string

const (
	CapabilityArchitecture Capability = "architecture"
	CapabilityPerformance  Capability = "performance"
	CapabilitySecurity     Capability = "security"
	CapabilityStyle        Capability = "style"
)

var knownCapabilities = map[Capability]struct{}{
	CapabilityArchitecture: {},
	CapabilityPerformance:  {},
	CapabilitySecurity:     {},
	CapabilityStyle:        {},
}

func (c Capability) Valid() bool {
	_, ok := knownCapabilities[c]
	return ok
}

func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

// ParseCapabilities parses a comma separated list, preserving order.
// Duplicates and unknown names are rejected.
func ParseCapabilities(csv string) ([]Capability, error) {
	var out []Capability
	seen := make(map[Capability]struct{})
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseCapability(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("capability %q listed twice", c)
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no capabilities in %q", csv)
	}
	return out, nil
}

func CapabilityStrings(caps []Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
