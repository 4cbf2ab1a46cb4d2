package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/smazurov/camview/pkg/linuxav/hotplug"
	"github.com/smazurov/camview/pkg/linuxav/v4l2"
	"github.com/spf13/cobra"
)

// deviceProber reads per-device details that need the node opened.
type deviceProber struct {
	deviceType func(path string) v4l2.DeviceType
	formats    func(path string) ([]v4l2.FormatInfo, error) // nil skips the column
}

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var showFormats bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 capture devices",
		Long: `Lists every video capture node with its card name, path, stable ID and type. ` +
			`The stable ID can be used as --device and survives re-enumeration.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			devices, err := v4l2.FindDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}

			prober := deviceProber{deviceType: v4l2.GetDeviceType}
			if showFormats {
				prober.formats = v4l2.GetFormats
			}
			if err := writeDevices(c.OutOrStdout(), devices, prober); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchDevices(ctx, c.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&showFormats, "formats", "f", false, "Also list supported pixel formats")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and report devices as they come and go")
	return cmd
}

func writeDevices(out io.Writer, devices []v4l2.DeviceInfo, prober deviceProber) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, "No capture devices found")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "NAME\tPATH\tID\tTYPE"
	if prober.formats != nil {
		header += "\tFORMATS"
	}
	fmt.Fprintln(tw, header)

	for _, dev := range devices {
		line := fmt.Sprintf("%s\t%s\t%s\t%s", dev.DeviceName, dev.DevicePath, dev.DeviceID, prober.deviceType(dev.DevicePath))
		if prober.formats != nil {
			formats, err := prober.formats(dev.DevicePath)
			if err != nil {
				line += "\t(" + err.Error() + ")"
			} else {
				line += "\t" + formatNames(formats)
			}
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

// formatNames joins FourCCs, marking compressed formats with '*'.
func formatNames(formats []v4l2.FormatInfo) string {
	if len(formats) == 0 {
		return "-"
	}
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		name := v4l2.FormatFourCC(f.PixelFormat)
		if f.Compressed {
			name += "*"
		}
		names = append(names, name)
	}
	return strings.Join(names, ",")
}

// watchDevices prints video node arrivals and removals until ctx is done.
func watchDevices(ctx context.Context, out io.Writer) error {
	mon, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return fmt.Errorf("failed to watch devices: %w", err)
	}
	defer mon.Close()

	uevents := make(chan hotplug.Event, 8)
	runErr := make(chan error, 1)
	go func() { runErr <- mon.Run(ctx, uevents) }()

	for ev := range uevents {
		if line, ok := describeEvent(ev); ok {
			fmt.Fprintln(out, line)
		}
	}
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// describeEvent renders add and remove events of device nodes.
func describeEvent(ev hotplug.Event) (string, bool) {
	node := ev.Node()
	if node == "" {
		return "", false
	}
	switch ev.Action {
	case hotplug.ActionAdd:
		return "added   " + node, true
	case hotplug.ActionRemove:
		return "removed " + node, true
	default:
		return "", false
	}
}
