package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/camview/internal/capture"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/pkg/linuxav/v4l2"
	"github.com/spf13/cobra"
)

// probeResult is what the formats command reports for one device.
type probeResult struct {
	Path        string
	Caps        v4l2.Capability
	Formats     []capture.FormatDescriptor
	EnumErr     error
	Chosen      capture.FormatDescriptor
	Resolutions []v4l2.Resolution
}

// CreateFormatsCmd creates the formats command.
func CreateFormatsCmd() *cobra.Command {
	var preferCompressed bool

	cmd := &cobra.Command{
		Use:   "formats [device]",
		Short: "Show the formats a device offers and the one capture would pick",
		Long: `Opens the device, checks it supports video capture with streaming I/O, lists its pixel formats ` +
			`and prints the format the negotiator selects. The device may be a path or a stable ID.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			device := DefaultDevice
			if len(args) == 1 {
				device = args[0]
			}
			path, err := ResolveDevicePath(device, v4l2.GetDevicePathByID)
			if err != nil {
				return err
			}

			result, err := probe(path, preferCompressed)
			if err != nil {
				return err
			}
			return writeProbe(c.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&preferCompressed, "prefer-compressed", true, "Pick MJPEG when the device offers it")
	return cmd
}

func probe(path string, preferCompressed bool) (probeResult, error) {
	session, err := capture.Open(path, capture.Options{Logger: logging.GetLogger("capture")})
	if err != nil {
		return probeResult{}, err
	}
	defer session.Close()

	caps, err := session.QueryCapabilities()
	if err != nil {
		return probeResult{}, err
	}

	result := probeResult{Path: path, Caps: caps}
	for desc, err := range session.EnumerateFormats() {
		if err != nil {
			result.EnumErr = err
			break
		}
		result.Formats = append(result.Formats, desc)
	}
	result.Chosen = session.NegotiateFormat(preferCompressed)

	if res, err := v4l2.GetResolutions(path, result.Chosen.PixelFormat); err == nil {
		result.Resolutions = res
	}
	return result, nil
}

func writeProbe(out io.Writer, r probeResult) error {
	fmt.Fprintf(out, "Device:  %s\n", r.Path)
	fmt.Fprintf(out, "Card:    %s\n", r.Caps.Card)
	fmt.Fprintf(out, "Driver:  %s\n", r.Caps.Driver)
	fmt.Fprintf(out, "Bus:     %s\n\n", r.Caps.BusInfo)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tFOURCC\tDESCRIPTION")
	for _, f := range r.Formats {
		mark := ""
		if f.PixelFormat == r.Chosen.PixelFormat {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, f.FourCC(), f.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.EnumErr != nil {
		fmt.Fprintf(out, "Enumeration stopped early: %v\n", r.EnumErr)
	}

	fmt.Fprintf(out, "\nSelected: %s (%s)\n", r.Chosen.FourCC(), r.Chosen.Description)
	if len(r.Resolutions) > 0 {
		largest := r.Resolutions[0]
		for _, res := range r.Resolutions[1:] {
			if res.Width*res.Height > largest.Width*largest.Height {
				largest = res
			}
		}
		fmt.Fprintf(out, "Sizes:    %d, largest %dx%d\n", len(r.Resolutions), largest.Width, largest.Height)
	}
	return nil
}
