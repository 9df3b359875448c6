package renderer

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/film"
	"github.com/df07/go-acoustic-raytracer/pkg/filter"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
	"github.com/df07/go-acoustic-raytracer/pkg/scene"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
)

// quietLogger discards render logs
type quietLogger struct{}

func (quietLogger) Printf(format string, args ...interface{}) {}

func newTestMicrophone(t *testing.T, position core.Vec3, frequencies ...float64) *sensor.Microphone {
	t.Helper()
	mic, err := sensor.NewMicrophone(position, frequencies)
	if err != nil {
		t.Fatalf("NewMicrophone failed: %v", err)
	}
	return mic
}

// createRoomScene builds a small diffuse room with one source
func createRoomScene(t *testing.T) *scene.Scene {
	t.Helper()
	absorption, err := material.NewIrregular([]float64{125, 1000, 4000}, []float64{0.1, 0.3, 0.6})
	if err != nil {
		t.Fatalf("NewIrregular failed: %v", err)
	}
	s := &scene.Scene{
		Name:       "test-room",
		Microphone: newTestMicrophone(t, core.NewVec3(2, 3, 2), 125, 1000, 4000),
	}
	s.AddRoom(core.NewVec3(0, 0, 0), core.NewVec3(10, 6, 4), material.NewDiffuse(absorption))
	s.AddSphereEmitter(core.NewVec3(7, 3, 2), 0.5, material.Uniform(1), 0)
	if err := s.Preprocess(); err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	return s
}

// createFreeFieldScene has a single source and no walls, so every path ends
// after passing through the source and each hit records exactly 1
func createFreeFieldScene(t *testing.T) *scene.Scene {
	t.Helper()
	s := &scene.Scene{
		Name:       "free-field",
		Microphone: newTestMicrophone(t, core.Vec3{}, 250, 2000),
	}
	s.AddSphereEmitter(core.NewVec3(5, 0, 0), 2, material.Uniform(1), 0)
	if err := s.Preprocess(); err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	return s
}

func testRenderConfig(workers int) RenderConfig {
	config := DefaultRenderConfig()
	config.SamplesPerPixel = 4
	config.SamplesPerPass = 2
	config.NumWorkers = workers
	config.Integrator.MaxDepth = 8
	config.Integrator.MaxTime = 0.1
	config.Integrator.TimeSteps = 40
	return config
}

func newTestRenderer(t *testing.T, config RenderConfig) *TimeDependentIntegrator {
	t.Helper()
	ti, err := NewAcousticRenderer(config, quietLogger{})
	if err != nil {
		t.Fatalf("NewAcousticRenderer failed: %v", err)
	}
	return ti
}

func newTestTape(t *testing.T, config RenderConfig, bands int) *film.Tape {
	t.Helper()
	tape, err := film.NewTape(config.Integrator.TimeSteps, bands, config.Integrator.MaxTime)
	if err != nil {
		t.Fatalf("NewTape failed: %v", err)
	}
	return tape
}

func assertClose(t *testing.T, name string, want, got []float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: expected %d bins, got %d", name, len(want), len(got))
	}
	for i := range want {
		if math.Abs(want[i]-got[i]) > 1e-12*math.Max(1, math.Abs(want[i])) {
			t.Errorf("%s bin %d: expected %v, got %v", name, i, want[i], got[i])
		}
	}
}

func TestRenderConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *RenderConfig)
		wantErr bool
	}{
		{"defaults", func(c *RenderConfig) {}, false},
		{"single pass", func(c *RenderConfig) { c.SamplesPerPass = 0 }, false},
		{"pass larger than total", func(c *RenderConfig) { c.SamplesPerPass = 128 }, false},
		{"zero samples", func(c *RenderConfig) { c.SamplesPerPixel = 0 }, true},
		{"indivisible", func(c *RenderConfig) { c.SamplesPerPixel = 10; c.SamplesPerPass = 4 }, true},
		{"negative pass", func(c *RenderConfig) { c.SamplesPerPass = -1 }, true},
		{"negative workers", func(c *RenderConfig) { c.NumWorkers = -1 }, true},
		{"negative timeout", func(c *RenderConfig) { c.Timeout = -1 }, true},
		{"bad integrator", func(c *RenderConfig) { c.Integrator.RRDepth = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultRenderConfig()
			tt.modify(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, core.ErrConfig) {
				t.Errorf("Expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestPasses(t *testing.T) {
	tests := []struct {
		spp, perPass  int
		wantPerPass   int
		wantPassCount int
	}{
		{64, 16, 16, 4},
		{64, 0, 64, 1},
		{8, 32, 8, 1},
		{1, 1, 1, 1},
	}

	for _, tt := range tests {
		config := RenderConfig{SamplesPerPixel: tt.spp, SamplesPerPass: tt.perPass}
		if got := config.EffectiveSamplesPerPass(); got != tt.wantPerPass {
			t.Errorf("spp %d/%d: expected %d samples per pass, got %d", tt.spp, tt.perPass, tt.wantPerPass, got)
		}
		if got := config.Passes(); got != tt.wantPassCount {
			t.Errorf("spp %d/%d: expected %d passes, got %d", tt.spp, tt.perPass, tt.wantPassCount, got)
		}
	}
}

func TestRenderRejectsMismatchedFilm(t *testing.T) {
	config := testRenderConfig(1)
	ti := newTestRenderer(t, config)
	s := createRoomScene(t)

	tests := []struct {
		name string
		tape func() (*film.Tape, error)
	}{
		{"time steps", func() (*film.Tape, error) { return film.NewTape(10, 3, config.Integrator.MaxTime) }},
		{"bands", func() (*film.Tape, error) { return film.NewTape(config.Integrator.TimeSteps, 2, config.Integrator.MaxTime) }},
		{"max time", func() (*film.Tape, error) { return film.NewTape(config.Integrator.TimeSteps, 3, 1.0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tape, err := tt.tape()
			if err != nil {
				t.Fatalf("NewTape failed: %v", err)
			}
			_, err = ti.Render(context.Background(), s, s.Microphone, tape)
			if !errors.Is(err, core.ErrConfig) {
				t.Errorf("Expected ErrConfig, got %v", err)
			}
		})
	}
}

// TestBandIndependence checks that a band rendered on its own matches the
// same column of a full render
func TestBandIndependence(t *testing.T) {
	config := testRenderConfig(3)
	s := createRoomScene(t)
	tape := newTestTape(t, config, s.Microphone.BandCount())

	ti := newTestRenderer(t, config)
	if _, err := ti.Render(context.Background(), s, s.Microphone, tape); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	const band = 1
	single := newTestTape(t, config, s.Microphone.BandCount())
	sampler := core.NewSeededSampler(99)
	for pass := 0; pass < config.Passes(); pass++ {
		hist, err := ti.newBandHistogram(band)
		if err != nil {
			t.Fatalf("newBandHistogram failed: %v", err)
		}
		ti.RenderBand(s, s.Microphone, sampler, hist, band, pass)
		if err := single.Put(hist); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if single.Energy(band) == 0 {
		t.Fatal("Expected the band to record energy")
	}
	assertClose(t, "band 1", tape.Raw(band), single.Raw(band))
	if single.Energy(0) != 0 || single.Energy(2) != 0 {
		t.Error("Expected a single band render to leave other columns empty")
	}
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	s := createRoomScene(t)
	bands := s.Microphone.BandCount()

	render := func(workers int) *film.Tape {
		config := testRenderConfig(workers)
		tape := newTestTape(t, config, bands)
		ti := newTestRenderer(t, config)
		if _, err := ti.Render(context.Background(), s, s.Microphone, tape); err != nil {
			t.Fatalf("Render with %d workers failed: %v", workers, err)
		}
		return tape
	}

	serial := render(1)
	parallel := render(4)
	for band := 0; band < bands; band++ {
		assertClose(t, "band", serial.Raw(band), parallel.Raw(band))
	}
}

func TestRenderStats(t *testing.T) {
	config := testRenderConfig(2)
	s := createFreeFieldScene(t)
	tape := newTestTape(t, config, s.Microphone.BandCount())

	ti := newTestRenderer(t, config)
	result, err := ti.Render(context.Background(), s, s.Microphone, tape)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	stats := result.Stats
	if result.RunID == "" {
		t.Error("Expected a run id")
	}
	if stats.TotalTasks != 4 || stats.CompletedTasks != 4 {
		t.Errorf("Expected 4/4 tasks, got %d/%d", stats.CompletedTasks, stats.TotalTasks)
	}
	wantPaths := 2 * config.Integrator.TimeSteps * config.SamplesPerPixel
	if stats.Paths != wantPaths {
		t.Errorf("Expected %d paths, got %d", wantPaths, stats.Paths)
	}
	if stats.PathsPerBand != config.Integrator.TimeSteps*config.SamplesPerPixel {
		t.Errorf("Expected %d paths per band, got %d", config.Integrator.TimeSteps*config.SamplesPerPixel, stats.PathsPerBand)
	}
	if stats.Cancelled {
		t.Error("Expected a complete render")
	}

	// Every path that hits the source records exactly one unit
	energy := tape.Energy(0) + tape.Energy(1)
	if energy != float64(stats.ValidPaths) {
		t.Errorf("Expected energy %d, got %v", stats.ValidPaths, energy)
	}
	if stats.ValidPaths == 0 || stats.ValidPaths == stats.Paths {
		t.Errorf("Expected some but not all paths to hit the source, got %d of %d", stats.ValidPaths, stats.Paths)
	}
}

func TestStateTransitions(t *testing.T) {
	config := testRenderConfig(2)
	s := createFreeFieldScene(t)
	ti := newTestRenderer(t, config)

	if ti.State() != StateIdle {
		t.Errorf("Expected %v before rendering, got %v", StateIdle, ti.State())
	}

	var mu sync.Mutex
	seen := map[State]bool{}
	ti.SetProgressCallback(func(Progress) {
		mu.Lock()
		seen[ti.State()] = true
		mu.Unlock()
	})

	if _, err := ti.Render(context.Background(), s, s.Microphone, newTestTape(t, config, 2)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if ti.State() != StateDone {
		t.Errorf("Expected %v, got %v", StateDone, ti.State())
	}
	for state := range seen {
		if state != StateDispatching && state != StateWaitingForWorkers {
			t.Errorf("Expected tasks to complete while dispatching or waiting, saw %v", state)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateWaitingForWorkers, "waiting for workers"},
		{StateCancelled, "cancelled"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestProgressCallback(t *testing.T) {
	config := testRenderConfig(3)
	s := createFreeFieldScene(t)
	ti := newTestRenderer(t, config)

	var updates []Progress
	ti.SetProgressCallback(func(p Progress) {
		updates = append(updates, p)
	})

	result, err := ti.Render(context.Background(), s, s.Microphone, newTestTape(t, config, 2))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if len(updates) != result.Stats.TotalTasks {
		t.Fatalf("Expected %d progress updates, got %d", result.Stats.TotalTasks, len(updates))
	}
	for i, p := range updates {
		if p.TasksDone != i+1 {
			t.Errorf("Update %d: expected %d tasks done, got %d", i, i+1, p.TasksDone)
		}
		if p.RunID != result.RunID {
			t.Errorf("Update %d: expected run id %s, got %s", i, result.RunID, p.RunID)
		}
	}
	if last := updates[len(updates)-1]; last.Fraction() != 1 {
		t.Errorf("Expected final fraction 1, got %v", last.Fraction())
	}
}

func TestCancelKeepsPartialWork(t *testing.T) {
	config := testRenderConfig(1)
	s := createFreeFieldScene(t)
	tape := newTestTape(t, config, 2)
	ti := newTestRenderer(t, config)
	ti.SetProgressCallback(func(Progress) { ti.Cancel() })

	result, err := ti.Render(context.Background(), s, s.Microphone, tape)
	if !errors.Is(err, core.ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", err)
	}
	if !result.Stats.Cancelled {
		t.Error("Expected cancelled stats")
	}
	if result.Stats.CompletedTasks != 1 {
		t.Errorf("Expected 1 completed task, got %d", result.Stats.CompletedTasks)
	}
	if ti.State() != StateCancelled {
		t.Errorf("Expected %v, got %v", StateCancelled, ti.State())
	}
	// The first task traced band 0 pass 0 and was merged
	if result.Stats.Paths != config.Integrator.TimeSteps*config.EffectiveSamplesPerPass() {
		t.Errorf("Expected one task worth of paths, got %d", result.Stats.Paths)
	}
	if tape.Energy(1) != 0 {
		t.Errorf("Expected band 1 to stay empty, got %v", tape.Energy(1))
	}
}

func TestContextCancelled(t *testing.T) {
	config := testRenderConfig(2)
	s := createFreeFieldScene(t)
	tape := newTestTape(t, config, 2)
	ti := newTestRenderer(t, config)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ti.Render(ctx, s, s.Microphone, tape)
	if !errors.Is(err, core.ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected the context error to be wrapped, got %v", err)
	}
	if result.Stats.CompletedTasks != 0 || result.Stats.Paths != 0 {
		t.Errorf("Expected no work, got %d tasks and %d paths", result.Stats.CompletedTasks, result.Stats.Paths)
	}

	// A later render with a live context runs normally
	if _, err := ti.Render(context.Background(), s, s.Microphone, newTestTape(t, config, 2)); err != nil {
		t.Errorf("Expected the next render to succeed, got %v", err)
	}
}

func TestCancelBeforeRender(t *testing.T) {
	config := testRenderConfig(2)
	s := createFreeFieldScene(t)

	tests := []struct {
		name   string
		render func(ti *TimeDependentIntegrator, tape *film.Tape) (RenderResult, error)
	}{
		{"pool", func(ti *TimeDependentIntegrator, tape *film.Tape) (RenderResult, error) {
			return ti.Render(context.Background(), s, s.Microphone, tape)
		}},
		{"wavefront", func(ti *TimeDependentIntegrator, tape *film.Tape) (RenderResult, error) {
			return ti.RenderWavefront(context.Background(), s, s.Microphone, tape)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ti := newTestRenderer(t, config)
			ti.Cancel()

			tape := newTestTape(t, config, 2)
			result, err := tt.render(ti, tape)
			if !errors.Is(err, core.ErrCancelled) {
				t.Fatalf("Expected ErrCancelled, got %v", err)
			}
			if result.Stats.Paths != 0 || tape.Energy(0) != 0 {
				t.Errorf("Expected no work, got %d paths and energy %v", result.Stats.Paths, tape.Energy(0))
			}

			// The request is used up by the render it stopped
			if _, err := tt.render(ti, newTestTape(t, config, 2)); err != nil {
				t.Errorf("Expected the next render to succeed, got %v", err)
			}
		})
	}
}

// TestWavefrontMatchesPool relies on the free-field scene consuming no
// random numbers after the microphone ray, so both paths see the same rays
func TestWavefrontMatchesPool(t *testing.T) {
	config := testRenderConfig(2)
	s := createFreeFieldScene(t)

	pooled := newTestTape(t, config, 2)
	if _, err := newTestRenderer(t, config).Render(context.Background(), s, s.Microphone, pooled); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	wavefront := newTestTape(t, config, 2)
	ti := newTestRenderer(t, config)
	result, err := ti.RenderWavefront(context.Background(), s, s.Microphone, wavefront)
	if err != nil {
		t.Fatalf("RenderWavefront failed: %v", err)
	}

	if result.Stats.CompletedTasks != config.Passes() {
		t.Errorf("Expected %d passes, got %d", config.Passes(), result.Stats.CompletedTasks)
	}
	if ti.State() != StateDone {
		t.Errorf("Expected %v, got %v", StateDone, ti.State())
	}
	for band := 0; band < 2; band++ {
		assertClose(t, "wavefront band", pooled.Raw(band), wavefront.Raw(band))
	}
}

// TestRenderWithFilter checks that splatting only spreads energy: every bin
// hit without a filter still receives energy with one
func TestRenderWithFilter(t *testing.T) {
	s := createFreeFieldScene(t)

	render := func(f filter.Filter) *film.Tape {
		config := testRenderConfig(2)
		config.Filter = f
		tape := newTestTape(t, config, 2)
		if _, err := newTestRenderer(t, config).Render(context.Background(), s, s.Microphone, tape); err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		return tape
	}

	plain := render(nil)
	splatted := render(filter.NewTent())
	for band := 0; band < 2; band++ {
		filtered := splatted.Raw(band)
		for i, v := range plain.Raw(band) {
			if v > 0 && !(filtered[i] > 0) {
				t.Errorf("Band %d bin %d: expected filtered energy, got %v", band, i, filtered[i])
			}
		}
	}
}
