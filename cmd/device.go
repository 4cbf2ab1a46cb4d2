// Package cmd holds the camview subcommands.
package cmd

import (
	"fmt"
	"strings"
)

// DefaultDevice is used when no device is configured.
const DefaultDevice = "/dev/video0"

// ResolveDevicePath turns a configured device into a node path. Values
// starting with "/" are paths already; anything else is a stable ID from
// `camview devices` and is looked up with lookup.
func ResolveDevicePath(device string, lookup func(id string) (string, error)) (string, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return DefaultDevice, nil
	}
	if strings.HasPrefix(device, "/") {
		return device, nil
	}
	path, err := lookup(device)
	if err != nil {
		return "", fmt.Errorf("failed to resolve device %q: %w", device, err)
	}
	return path, nil
}
