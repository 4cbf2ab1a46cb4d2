package led

import (
	"os"
	"strings"

	"github.com/smazurov/camview/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// board maps a device tree model substring to its status LED.
type board struct {
	model   string
	ledType string
	leds    map[string]string
}

var boards = []board{
	{"NanoPC-T6", "system", map[string]string{"user": "usr_led", "system": "sys_led"}},
	{"Orange Pi", "green", map[string]string{"blue": "blue_led", "green": "green_led"}},
	{"Raspberry Pi", "act", map[string]string{"act": "ACT"}},
}

// New creates a controller for the detected board and returns it with the
// LED type to use as the capture indicator. Unknown boards get a no-op
// controller.
func New(logger logging.Logger) (Controller, string) {
	return newForModel(detectBoard(), sysfsLEDPath, logger)
}

func newForModel(model, root string, logger logging.Logger) (Controller, string) {
	for _, b := range boards {
		if strings.Contains(model, b.model) {
			logger.Info("Detected board, using sysfs LED controller", "board_model", model, "led", b.ledType)
			return newSysfs(root, b.leds), b.ledType
		}
	}
	logger.Info("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger), ""
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}
