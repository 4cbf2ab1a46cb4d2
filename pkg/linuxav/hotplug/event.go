// Package hotplug reports kernel device add and remove events by listening
// to NETLINK_KOBJECT_UEVENT directly, without libudev.
package hotplug

import "bytes"

// Actions carried by kernel uevents.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// SubsystemVideo4Linux is the subsystem of /dev/video* nodes.
const SubsystemVideo4Linux = "video4linux"

// Event is one kernel uevent.
type Event struct {
	Action    string            // add, remove, change, ...
	KObj      string            // sysfs path of the kernel object
	Subsystem string            // e.g. video4linux
	DevName   string            // node name relative to /dev, e.g. video0
	Env       map[string]string // every KEY=VALUE pair of the event
}

// Node returns the /dev path of the event's device node, or "" when the
// event carries no DEVNAME.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	return "/dev/" + e.DevName
}

// Removes reports whether e is the removal of the device node at path.
func (e Event) Removes(path string) bool {
	return e.Action == ActionRemove && path != "" && e.Node() == path
}

// ParseUEvent decodes "ACTION@KOBJ\0KEY=VALUE\0...". It returns nil for
// anything without an action.
func ParseUEvent(data []byte) *Event {
	fields := bytes.Split(data, []byte{0})
	action, kobj, ok := bytes.Cut(fields[0], []byte("@"))
	if !ok || len(action) == 0 {
		return nil
	}

	e := &Event{
		Action: string(action),
		KObj:   string(kobj),
		Env:    make(map[string]string),
	}
	for _, field := range fields[1:] {
		key, value, ok := bytes.Cut(field, []byte("="))
		if !ok || len(key) == 0 {
			continue
		}
		e.Env[string(key)] = string(value)
	}
	e.Subsystem = e.Env["SUBSYSTEM"]
	e.DevName = e.Env["DEVNAME"]
	return e
}
