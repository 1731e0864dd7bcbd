// Package audio wraps PortAudio input capture behind a small ring buffer
// the analyzer can poll once per frame.
package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const defaultRingSize = 4096

// Capture owns a PortAudio input stream and keeps the most recent mono
// samples in a ring buffer.
type Capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	device     *portaudio.DeviceInfo

	mu    sync.RWMutex
	ring  []float32
	index int
}

// Config controls how a Capture instance is created.
type Config struct {
	DeviceName string
	RingSize   int
	Channels   int
}

// NewCapture opens and starts a PortAudio input stream.
func NewCapture(cfg Config) (*Capture, error) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = defaultRingSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}

	c := &Capture{
		sampleRate: device.DefaultSampleRate,
		channels:   cfg.Channels,
		device:     device,
		ring:       make([]float32, cfg.RingSize),
	}

	framesPerBuffer := cfg.RingSize / cfg.Channels
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      c.sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, c.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	c.stream = stream

	if err := c.stream.Start(); err != nil {
		_ = c.stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return c, nil
}

// Close stops and closes the underlying stream.
func (c *Capture) Close() error {
	if c.stream == nil {
		return nil
	}
	if err := c.stream.Stop(); err != nil && !isAlreadyStopped(err) {
		return err
	}
	return c.stream.Close()
}

// SampleRate returns the stream sample rate.
func (c *Capture) SampleRate() float64 { return c.sampleRate }

// Device returns the PortAudio device behind the stream.
func (c *Capture) Device() *portaudio.DeviceInfo { return c.device }

// Samples copies the ring buffer out in chronological order.
func (c *Capture) Samples() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := make([]float32, len(c.ring))
	if c.index == 0 {
		copy(cp, c.ring)
		return cp
	}
	copy(cp, c.ring[c.index:])
	copy(cp[len(c.ring)-c.index:], c.ring[:c.index])
	return cp
}

// process is the PortAudio callback. Multichannel input is averaged
// down to mono before entering the ring.
func (c *Capture) process(in []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channels > 1 {
		mono := make([]float32, len(in)/c.channels)
		for i := range mono {
			sum := float32(0)
			base := i * c.channels
			for ch := 0; ch < c.channels; ch++ {
				sum += in[base+ch]
			}
			mono[i] = sum / float32(c.channels)
		}
		c.push(mono)
		return
	}
	c.push(in)
}

func (c *Capture) push(in []float32) {
	if len(in) == 0 {
		return
	}

	if len(in) >= len(c.ring) {
		copy(c.ring, in[len(in)-len(c.ring):])
		c.index = 0
		return
	}

	if c.index+len(in) <= len(c.ring) {
		copy(c.ring[c.index:], in)
		c.index += len(in)
		if c.index == len(c.ring) {
			c.index = 0
		}
		return
	}

	remaining := len(c.ring) - c.index
	copy(c.ring[c.index:], in[:remaining])
	copy(c.ring, in[remaining:])
	c.index = len(in) - remaining
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil {
		if in := host.DefaultInputDevice; in != nil && in.MaxInputChannels > 0 {
			return in, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	var best *portaudio.DeviceInfo
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		if best == nil || d.MaxInputChannels > best.MaxInputChannels {
			best = d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no suitable audio input device found")
	}
	return best, nil
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	name = strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), name) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// isAlreadyStopped detects stopping a stream that is not running.
func isAlreadyStopped(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "PaErrorCode -9986")
}
