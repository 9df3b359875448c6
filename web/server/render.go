package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/df07/go-acoustic-raytracer/pkg/analysis"
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/film"
	"github.com/df07/go-acoustic-raytracer/pkg/filter"
	"github.com/df07/go-acoustic-raytracer/pkg/renderer"
	"github.com/df07/go-acoustic-raytracer/pkg/scene"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
	"github.com/google/uuid"
)

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene           string  `json:"scene"`           // Built-in id or "room:<name>"
	SamplesPerPixel int     `json:"samplesPerPixel"` // Paths per time step and band
	SamplesPerPass  int     `json:"samplesPerPass"`  // Paths per time step and band in one task
	TimeSteps       int     `json:"timeSteps"`       // Number of time bins
	MaxTime         float64 `json:"maxTime"`         // Histogram duration in seconds
	MaxDepth        int     `json:"maxDepth"`        // -1 for unlimited
	RRDepth         int     `json:"rrDepth"`         // Depth at which Russian roulette starts
	Octave          int     `json:"octave"`          // 1/N octave bands, 0 keeps the scene frequencies
	Filter          string  `json:"filter"`          // Time reconstruction filter
	Wavefront       bool    `json:"wavefront"`       // Trace passes as single lane batches
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "progress", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// ProgressUpdate is sent after every completed task
type ProgressUpdate struct {
	RenderID   string  `json:"renderId"`
	TasksDone  int     `json:"tasksDone"`
	TotalTasks int     `json:"totalTasks"`
	Band       int     `json:"band"`
	Pass       int     `json:"pass"`
	Fraction   float64 `json:"fraction"`
	ElapsedMs  int64   `json:"elapsedMs"`
}

// BandSummary holds the result of one frequency band
type BandSummary struct {
	Frequency float64   `json:"frequency"`
	Energy    float64   `json:"energy"`
	EDT       float64   `json:"edt"`
	T20       float64   `json:"t20"`
	T30       float64   `json:"t30"`
	C50       float64   `json:"c50"`
	C80       float64   `json:"c80"`
	D50       float64   `json:"d50"`
	Envelope  []float64 `json:"envelope"`     // Energy per path, averaged down to at most maxEnvelopePoints
	Step      float64   `json:"envelopeStep"` // Seconds covered by each envelope point
	Warning   string    `json:"warning,omitempty"`
}

// maxEnvelopePoints bounds the envelope sent per band in the complete event
const maxEnvelopePoints = 512

// CompleteEvent is the final event of a render stream
type CompleteEvent struct {
	RenderID   string        `json:"renderId"`
	RunID      string        `json:"runId"`
	Scene      string        `json:"scene"`
	TimeSteps  int           `json:"timeSteps"`
	MaxTime    float64       `json:"maxTime"`
	Paths      int           `json:"paths"`
	ValidPaths int           `json:"validPaths"`
	Cancelled  bool          `json:"cancelled"`
	ElapsedMs  int64         `json:"elapsedMs"`
	Bands      []BandSummary `json:"bands"`
}

// renderJob contains the configured scene, microphone and renderer
type renderJob struct {
	Scene      *scene.Scene
	Microphone *sensor.Microphone
	Tape       *film.Tape
	Renderer   *renderer.TimeDependentIntegrator
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	query := r.URL.Query()
	defaults := renderer.DefaultRenderConfig()

	req := &RenderRequest{
		Scene:  query.Get("scene"),
		Filter: query.Get("filter"),
	}
	if req.Scene == "" {
		req.Scene = "shoebox"
	}

	var err error
	if req.SamplesPerPixel, err = parseIntParam(query, "spp", defaults.SamplesPerPixel, 1, 4096); err != nil {
		return nil, err
	}
	if req.SamplesPerPass, err = parseIntParam(query, "sppPass", defaults.SamplesPerPass, 0, 4096); err != nil {
		return nil, err
	}
	if req.TimeSteps, err = parseIntParam(query, "timeSteps", defaults.Integrator.TimeSteps, 1, 100000); err != nil {
		return nil, err
	}
	if req.MaxTime, err = parseFloatParam(query, "maxTime", defaults.Integrator.MaxTime, 0.001, 60); err != nil {
		return nil, err
	}
	if req.MaxDepth, err = parseIntParam(query, "maxDepth", defaults.Integrator.MaxDepth, -1, 10000); err != nil {
		return nil, err
	}
	if req.RRDepth, err = parseIntParam(query, "rrDepth", defaults.Integrator.RRDepth, 1, 10000); err != nil {
		return nil, err
	}
	if req.Octave, err = parseIntParam(query, "octave", 0, 0, 24); err != nil {
		return nil, err
	}
	if req.Wavefront, err = parseBoolParam(query, "wavefront", false); err != nil {
		return nil, err
	}

	// Performance warning
	if req.TimeSteps*req.SamplesPerPixel > 1<<22 {
		log.Printf("Render warning: %d time steps with %d samples may render slowly", req.TimeSteps, req.SamplesPerPixel)
	}

	return req, nil
}

// renderConfig converts a request into a validated render configuration
func (req *RenderRequest) renderConfig() (renderer.RenderConfig, error) {
	config := renderer.DefaultRenderConfig()
	config.SamplesPerPixel = req.SamplesPerPixel
	config.SamplesPerPass = req.SamplesPerPass
	config.Integrator.TimeSteps = req.TimeSteps
	config.Integrator.MaxTime = req.MaxTime
	config.Integrator.MaxDepth = req.MaxDepth
	config.Integrator.RRDepth = req.RRDepth

	f, err := filter.Parse(req.Filter)
	if err != nil {
		return config, err
	}
	config.Filter = f
	return config, config.Validate()
}

// setupRenderJob loads the scene and builds the renderer for a request
func (s *Server) setupRenderJob(req *RenderRequest, logger core.Logger) (*renderJob, error) {
	config, err := req.renderConfig()
	if err != nil {
		return nil, err
	}

	sceneObj, err := scene.LoadScene(req.Scene, s.scenesDir)
	if err != nil {
		return nil, err
	}

	mic := sceneObj.Microphone
	if req.Octave > 0 {
		if mic, err = sensor.NewOctaveMicrophone(mic.Position, req.Octave, 100, 5000); err != nil {
			return nil, err
		}
	}

	tape, err := film.NewTape(config.Integrator.TimeSteps, mic.BandCount(), config.Integrator.MaxTime)
	if err != nil {
		return nil, err
	}
	ti, err := renderer.NewAcousticRenderer(config, logger)
	if err != nil {
		return nil, err
	}

	return &renderJob{Scene: sceneObj, Microphone: mic, Tape: tape, Renderer: ti}, nil
}

// handleRender runs a render and streams console output, progress and the result via SSE
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)

	ctx := r.Context()
	renderID := uuid.NewString()

	// All writes to w go through one goroutine
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(w, ctx, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.sendEvent(sseEventChan, "error", fmt.Sprintf("Invalid request: %v", err))
		return
	}

	consoleChan := make(chan ConsoleMessage, 50)
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(consoleChan, sseEventChan)
	}()
	webLogger := NewWebLogger(renderID, consoleChan)

	job, err := s.setupRenderJob(req, webLogger)
	if err != nil {
		close(consoleChan)
		<-consoleDone
		s.sendEvent(sseEventChan, "error", err.Error())
		return
	}

	startTime := time.Now()
	job.Renderer.SetProgressCallback(func(p renderer.Progress) {
		s.sendEvent(sseEventChan, "progress", ProgressUpdate{
			RenderID:   renderID,
			TasksDone:  p.TasksDone,
			TotalTasks: p.TotalTasks,
			Band:       p.Band,
			Pass:       p.Pass,
			Fraction:   p.Fraction(),
			ElapsedMs:  time.Since(startTime).Milliseconds(),
		})
	})

	var result renderer.RenderResult
	if req.Wavefront {
		result, err = job.Renderer.RenderWavefront(ctx, job.Scene, job.Microphone, job.Tape)
	} else {
		result, err = job.Renderer.Render(ctx, job.Scene, job.Microphone, job.Tape)
	}

	// The renderer no longer logs; flush the console before the final event
	close(consoleChan)
	<-consoleDone

	if err != nil && !errors.Is(err, core.ErrCancelled) {
		s.sendEvent(sseEventChan, "error", fmt.Sprintf("Rendering failed: %v", err))
		return
	}
	s.sendEvent(sseEventChan, "complete", s.completeEvent(renderID, req, job, result, time.Since(startTime)))
}

// completeEvent summarizes the tape of a finished render
func (s *Server) completeEvent(renderID string, req *RenderRequest, job *renderJob, result renderer.RenderResult, elapsed time.Duration) CompleteEvent {
	event := CompleteEvent{
		RenderID:   renderID,
		RunID:      result.RunID,
		Scene:      job.Scene.Name,
		TimeSteps:  req.TimeSteps,
		MaxTime:    req.MaxTime,
		Paths:      result.Stats.Paths,
		ValidPaths: result.Stats.ValidPaths,
		Cancelled:  result.Stats.Cancelled,
		ElapsedMs:  elapsed.Milliseconds(),
	}

	metrics, _ := analysis.AnalyzeTape(job.Tape, job.Microphone.Frequencies)
	for band, m := range metrics {
		envelope, factor := decimate(job.Tape.Estimate(band, result.Stats.PathsPerBand), maxEnvelopePoints)
		summary := BandSummary{
			Frequency: m.Frequency,
			Energy:    finite(m.Energy),
			EDT:       finite(m.EDT),
			T20:       finite(m.T20),
			T30:       finite(m.T30),
			C50:       finite(m.C50),
			C80:       finite(m.C80),
			D50:       finite(m.D50),
			Envelope:  envelope,
			Step:      float64(factor) * job.Tape.BinDuration(),
		}
		if m.Err != nil {
			summary.Warning = m.Err.Error()
		}
		event.Bands = append(event.Bands, summary)
	}
	return event
}

// decimate averages consecutive groups of values so that at most maxPoints
// remain. It returns the averaged series and the group size.
func decimate(values []float64, maxPoints int) ([]float64, int) {
	if maxPoints <= 0 || len(values) <= maxPoints {
		return values, 1
	}
	factor := (len(values) + maxPoints - 1) / maxPoints

	out := make([]float64, 0, (len(values)+factor-1)/factor)
	for start := 0; start < len(values); start += factor {
		end := min(start+factor, len(values))
		sum := 0.0
		for _, v := range values[start:end] {
			sum += v
		}
		out = append(out, sum/float64(end-start))
	}
	return out, factor
}

// finite maps values JSON cannot carry to zero
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// sendEvent queues an event; data that is not a string is sent as JSON
func (s *Server) sendEvent(sseEventChan chan<- SSEEvent, eventType string, data interface{}) {
	payload, ok := data.(string)
	if !ok {
		encoded, err := json.Marshal(data)
		if err != nil {
			log.Printf("Error marshaling %s event: %v", eventType, err)
			return
		}
		payload = string(encoded)
	}
	sseEventChan <- SSEEvent{Type: eventType, Data: payload}
}

// writeSSEEvents writes queued events until the channel is closed. After the
// client disconnects events are drained without writing so senders never block.
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan <-chan SSEEvent) {
	flusher, _ := w.(http.Flusher)
	connected := true

	for event := range sseEventChan {
		if !connected || ctx.Err() != nil {
			connected = false
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
			connected = false
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// streamConsoleMessages forwards console messages until consoleChan is closed
func (s *Server) streamConsoleMessages(consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	for msg := range consoleChan {
		s.sendEvent(sseEventChan, "console", msg)
	}
}
