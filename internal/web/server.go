// Package web exposes the engine over REST and a websocket status feed
// so browser control surfaces can drive the visuals remotely.
package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/padverb/vizor/internal/engine"
	"github.com/padverb/vizor/internal/param"
	"github.com/padverb/vizor/internal/project"
	"github.com/padverb/vizor/internal/render"
)

// Server bridges HTTP clients to the engine. Every parameter write it
// submits carries UI priority.
type Server struct {
	eng    *engine.Engine
	logger *log.Logger

	mu        sync.RWMutex
	clients   map[*wsClient]bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// NewServer creates a Server for the given engine.
func NewServer(eng *engine.Engine, logger *log.Logger) *Server {
	return &Server{
		eng:       eng,
		logger:    logger,
		clients:   make(map[*wsClient]bool),
		broadcast: make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start serves until the listener fails. It blocks.
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/transport", s.handleTransport)
	mux.HandleFunc("/api/patterns", s.handlePatterns)
	mux.HandleFunc("/api/patterns/assign", s.handleAssign)
	mux.HandleFunc("/api/patterns/capture", s.handleCapture)
	mux.HandleFunc("/api/tracks", s.handleTracks)
	mux.HandleFunc("/api/keyframes", s.handleKeyframes)
	mux.HandleFunc("/api/project", s.handleProject)
	mux.HandleFunc("/api/meta", s.handleMeta)
	mux.HandleFunc("/ws", s.handleWebSocket)

	addr := fmt.Sprintf(":%d", port)
	s.logf("listening on http://0.0.0.0%s", addr)

	go s.broadcastLoop()
	go s.statusLoop()

	return http.ListenAndServe(addr, mux)
}

type statusResponse struct {
	Playing     bool           `json:"playing"`
	BPM         float64        `json:"bpm"`
	StepCount   int            `json:"stepCount"`
	CurrentStep int            `json:"currentStep"`
	LoopCount   int            `json:"loopCount"`
	Params      param.Snapshot `json:"params"`
	PatternIDs  []string       `json:"patternIds"`
}

func (s *Server) status() statusResponse {
	return statusResponse{
		Playing:     s.eng.Playing(),
		BPM:         s.eng.BPM(),
		StepCount:   s.eng.StepCount(),
		CurrentStep: s.eng.CurrentStep(),
		LoopCount:   s.eng.LoopCount(),
		Params:      s.eng.Snapshot(),
		PatternIDs:  s.eng.PatternIDs(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status())
}

type paramRequest struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
	Steps float64         `json:"steps"`
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var reqs []paramRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, req := range reqs {
		value, err := decodeValue(req.Value)
		if err != nil {
			http.Error(w, fmt.Sprintf("param %q: %v", req.Name, err), http.StatusBadRequest)
			return
		}
		s.eng.RequestChange(req.Name, nil, value, req.Steps, engine.SourceUI)
	}
	writeOK(w)
}

// decodeValue accepts a bare number, a string, or a color stop list.
func decodeValue(raw json.RawMessage) (param.Value, error) {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return param.Number(num), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return param.Text(text), nil
	}
	var stops []param.ColorStop
	if err := json.Unmarshal(raw, &stops); err == nil && len(stops) > 0 {
		return param.Colors(stops...), nil
	}
	return param.Value{}, fmt.Errorf("unsupported value %s", string(raw))
}

type transportRequest struct {
	Action    string   `json:"action,omitempty"`
	BPM       *float64 `json:"bpm,omitempty"`
	StepCount *int     `json:"stepCount,omitempty"`
	RampSteps *float64 `json:"rampSteps,omitempty"`
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.BPM != nil {
		if err := s.eng.SetBPM(*req.BPM); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.StepCount != nil {
		if err := s.eng.SetStepCount(*req.StepCount); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.RampSteps != nil {
		s.eng.SetRampSteps(*req.RampSteps)
	}

	switch req.Action {
	case "play":
		s.eng.Play()
	case "stop":
		s.eng.Stop()
	case "":
	default:
		http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
		return
	}
	writeOK(w)
}

type patternRequest struct {
	ID     string                     `json:"id"`
	Values map[string]json.RawMessage `json:"values,omitempty"`
	Load   bool                       `json:"load,omitempty"`
	Delete bool                       `json:"delete,omitempty"`
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.eng.PatternIDs())
	case http.MethodPost:
		var req patternRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch {
		case req.Delete:
			s.eng.RemovePattern(req.ID)
		case req.Load:
			s.eng.LoadPattern(req.ID)
		default:
			pattern := make(engine.Pattern, len(req.Values))
			for name, raw := range req.Values {
				value, err := decodeValue(raw)
				if err != nil {
					http.Error(w, fmt.Sprintf("param %q: %v", name, err), http.StatusBadRequest)
					return
				}
				pattern[name] = value
			}
			s.eng.SetPattern(req.ID, pattern)
		}
		writeOK(w)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type assignRequest struct {
	Step int    `json:"step"`
	ID   string `json:"id"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.eng.AssignPattern(req.Step, req.ID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeOK(w)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req patternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "pattern id required", http.StatusBadRequest)
		return
	}
	s.eng.CapturePattern(req.ID)
	writeOK(w)
}

type trackRequest struct {
	ID     string `json:"id"`
	Param  string `json:"param,omitempty"`
	Delete bool   `json:"delete,omitempty"`
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.eng.Tracks())
	case http.MethodPost:
		var req trackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Delete {
			s.eng.RemoveTrack(req.ID)
			writeOK(w)
			return
		}
		if err := s.eng.AddTrack(req.ID, req.Param); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeOK(w)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type keyframeRequest struct {
	Track  string   `json:"track"`
	Step   float64  `json:"step"`
	Value  *float64 `json:"value,omitempty"`
	Delete bool     `json:"delete,omitempty"`
	Update bool     `json:"update,omitempty"`
}

func (s *Server) handleKeyframes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req keyframeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var ok bool
	switch {
	case req.Delete:
		ok = s.eng.RemoveKeyframe(req.Track, req.Step)
	case req.Update:
		if req.Value == nil {
			http.Error(w, "value required for update", http.StatusBadRequest)
			return
		}
		ok = s.eng.UpdateKeyframe(req.Track, req.Step, *req.Value)
	default:
		ok = s.eng.AddKeyframe(req.Track, req.Step)
		if ok && req.Value != nil {
			ok = s.eng.UpdateKeyframe(req.Track, req.Step, *req.Value)
		}
	}
	if !ok {
		http.Error(w, fmt.Sprintf("keyframe op failed for track %q step %v", req.Track, req.Step), http.StatusBadRequest)
		return
	}
	writeOK(w)
}

type projectRequest struct {
	Name   string `json:"name"`
	Action string `json:"action"` // save | load | delete
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		names, err := project.List()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, names)
	case http.MethodPost:
		var req projectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var err error
		switch req.Action {
		case "save":
			err = project.Save(req.Name, s.eng.ExportProject())
		case "load":
			var state engine.ProjectState
			if state, err = project.Load(req.Name); err == nil {
				err = s.eng.ImportProject(state)
			}
		case "delete":
			err = project.Delete(req.Name)
		default:
			http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeOK(w)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type metaResponse struct {
	Patterns   []string     `json:"patterns"`
	Palettes   []string     `json:"palettes"`
	ColorModes []string     `json:"colorModes"`
	Qualities  []string     `json:"qualities"`
	Schema     param.Schema `json:"schema"`
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, metaResponse{
		Patterns:   render.PatternNames(),
		Palettes:   render.PaletteNames(),
		ColorModes: render.ColorModeNames(),
		Qualities:  render.QualityModeNames(),
		Schema:     param.DefaultSchema(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("websocket upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (s *Server) broadcastLoop() {
	for message := range s.broadcast {
		s.mu.Lock()
		for client := range s.clients {
			select {
			case client.send <- message:
			default:
				close(client.send)
				delete(s.clients, client)
			}
		}
		s.mu.Unlock()
	}
}

func (s *Server) statusLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.eng.Updates:
		}
		data, err := json.Marshal(s.status())
		if err != nil {
			continue
		}
		select {
		case s.broadcast <- data:
		default:
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf("[web] "+format, args...)
	}
}
