// Package metrics provides Prometheus metrics for capture sessions.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camview",
		Name:      "frames_total",
		Help:      "Frames captured and rendered",
	}, []string{"device"})

	framesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camview",
		Name:      "frames_skipped_total",
		Help:      "Capture attempts that produced no frame",
	}, []string{"device", "reason"})

	frameBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camview",
		Name:      "frame_bytes",
		Help:      "Payload size of rendered frames",
		Buckets:   prometheus.ExponentialBuckets(4096, 4, 8),
	}, []string{"device"})

	streaming = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camview",
		Name:      "streaming",
		Help:      "1 while the device is streaming",
	}, []string{"device"})

	// Local cache for the status API.
	deviceCache   = make(map[string]*DeviceMetrics)
	deviceCacheMu sync.RWMutex
)

// DeviceMetrics holds current metric values for a device.
type DeviceMetrics struct {
	Frames    uint64 `json:"frames" doc:"Frames rendered"`
	Skipped   uint64 `json:"skipped" doc:"Attempts that produced no frame"`
	Bytes     uint64 `json:"bytes" doc:"Payload bytes rendered"`
	Streaming bool   `json:"streaming" doc:"Whether the device is streaming"`
}

// RecordFrame counts one rendered frame of size bytes.
func RecordFrame(device string, size int) {
	framesTotal.WithLabelValues(device).Inc()
	frameBytes.WithLabelValues(device).Observe(float64(size))
	updateCache(device, func(m *DeviceMetrics) {
		m.Frames++
		m.Bytes += uint64(size)
	})
}

// RecordSkip counts one capture attempt that produced no frame.
func RecordSkip(device, reason string) {
	framesSkipped.WithLabelValues(device, reason).Inc()
	updateCache(device, func(m *DeviceMetrics) { m.Skipped++ })
}

// SetStreaming sets the streaming gauge for a device.
func SetStreaming(device string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	streaming.WithLabelValues(device).Set(v)
	updateCache(device, func(m *DeviceMetrics) { m.Streaming = on })
}

// DeleteDeviceMetrics removes all metrics for a device.
func DeleteDeviceMetrics(device string) {
	framesTotal.DeleteLabelValues(device)
	framesSkipped.DeletePartialMatch(prometheus.Labels{"device": device})
	frameBytes.DeleteLabelValues(device)
	streaming.DeleteLabelValues(device)

	deviceCacheMu.Lock()
	delete(deviceCache, device)
	deviceCacheMu.Unlock()
}

// GetDeviceMetrics returns current metric values for a device.
func GetDeviceMetrics(device string) *DeviceMetrics {
	deviceCacheMu.RLock()
	defer deviceCacheMu.RUnlock()
	if m, ok := deviceCache[device]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllDeviceMetrics returns metrics for every device seen so far.
func GetAllDeviceMetrics() map[string]*DeviceMetrics {
	deviceCacheMu.RLock()
	defer deviceCacheMu.RUnlock()
	result := make(map[string]*DeviceMetrics, len(deviceCache))
	for id, m := range deviceCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(device string, update func(*DeviceMetrics)) {
	deviceCacheMu.Lock()
	defer deviceCacheMu.Unlock()
	m, ok := deviceCache[device]
	if !ok {
		m = &DeviceMetrics{}
		deviceCache[device] = m
	}
	update(m)
}
