// Package midi decodes controller hardware into engine change requests:
// continuous controllers are scaled into each parameter's declared range and
// submitted immediately, note-on events trigger pattern loads.
package midi

import (
	"fmt"
	"log"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"github.com/padverb/vizor/internal/engine"
	"github.com/padverb/vizor/internal/param"
)

// Bindings routes incoming MIDI events.
type Bindings struct {
	// CC maps a controller number to a parameter name.
	CC map[uint8]string
	// Notes maps a note number to a pattern id to load.
	Notes map[uint8]string
}

// Input listens on one MIDI port and feeds the engine.
type Input struct {
	id     string
	stop   func()
	logger *log.Logger
}

// Ports lists the available MIDI input port names.
func Ports() []string {
	ports := gomidi.GetInPorts()
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names
}

// Open connects to the first input port whose name contains portName
// (case-insensitive) and starts routing events into the engine.
func Open(portName string, eng *engine.Engine, b Bindings, logger *log.Logger) (*Input, error) {
	port, err := findPort(portName)
	if err != nil {
		return nil, err
	}

	in := &Input{id: port.String(), logger: logger}
	schema := eng.Schema()

	stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
		var channel, cc, value uint8
		var note, velocity uint8

		switch {
		case msg.GetControlChange(&channel, &cc, &value):
			name, ok := b.CC[cc]
			if !ok {
				return
			}
			spec, ok := schema.Lookup(name)
			if !ok || spec.Kind != param.KindNumber {
				in.logf("cc %d bound to unusable parameter %q", cc, name)
				return
			}
			eng.RequestChange(name, nil, param.Number(spec.ScaleMIDI(value)), 0, engine.SourceMIDI)

		case msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0:
			id, ok := b.Notes[note]
			if !ok {
				return
			}
			in.logf("note %d -> pattern %q", note, id)
			eng.LoadPattern(id)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("listen on %q: %w", in.id, err)
	}
	in.stop = stop

	if logger != nil {
		logger.Printf("midi input connected: %s (%d cc bindings, %d note triggers)", in.id, len(b.CC), len(b.Notes))
	}
	return in, nil
}

// ID returns the connected port name.
func (in *Input) ID() string {
	return in.id
}

// Close stops listening.
func (in *Input) Close() {
	if in.stop != nil {
		in.stop()
	}
}

func (in *Input) logf(format string, args ...any) {
	if in.logger != nil {
		in.logger.Printf(format, args...)
	}
}

func findPort(name string) (drivers.In, error) {
	ports := gomidi.GetInPorts()
	if len(ports) == 0 {
		return nil, fmt.Errorf("no MIDI input ports available")
	}
	if name == "" {
		return ports[0], nil
	}
	needle := strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), needle) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("MIDI input port %q not found", name)
}
