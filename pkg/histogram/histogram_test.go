package histogram

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/filter"
)

const tolerance = 1e-9

func mustNew(t *testing.T, timeBins, freqBins, channels int, opts ...Option) *Histogram {
	t.Helper()
	h, err := New(timeBins, freqBins, channels, opts...)
	if err != nil {
		t.Fatalf("New(%d, %d, %d): unexpected error %v", timeBins, freqBins, channels, err)
	}
	return h
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		timeBins int
		freqBins int
		channels int
		opts     []Option
	}{
		{"zero time bins", 0, 1, 1, nil},
		{"negative freq bins", 4, -1, 1, nil},
		{"zero channels", 4, 1, 0, nil},
		{"empty time range", 4, 1, 1, []Option{WithTimeRange(1, 1)}},
		{"reversed time range", 4, 1, 1, []Option{WithTimeRange(2, 1)}},
		{"negative frequency bound", 4, 1, 1, []Option{WithFrequencyRange(-10, 100)}},
		{"edge count mismatch", 4, 2, 1, []Option{WithFrequencyBins([]float64{0, 1})}},
		{"non-increasing edges", 4, 3, 1, []Option{WithFrequencyBins([]float64{0, 1, 1, 2})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.timeBins, tt.freqBins, tt.channels, tt.opts...)
			if !errors.Is(err, core.ErrConfig) {
				t.Errorf("Expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestNew_Zeroed(t *testing.T) {
	h := mustNew(t, 8, 3, 2)
	if len(h.Data()) != 8*3*2 || len(h.Counts()) != len(h.Data()) {
		t.Fatalf("Expected %d entries, got data=%d counts=%d", 8*3*2, len(h.Data()), len(h.Counts()))
	}
	for i := range h.Data() {
		if h.Data()[i] != 0 || h.Counts()[i] != 0 {
			t.Fatalf("Expected zeroed buffers at %d", i)
		}
	}
}

func TestPut_Bounds(t *testing.T) {
	h := mustNew(t, 4, 2, 1)

	tests := []struct {
		name   string
		pos    core.Vec2
		active bool
		ok     bool
	}{
		{"inside", core.NewVec2(1.7, 1), true, true},
		{"origin", core.NewVec2(0, 0), true, true},
		{"inactive", core.NewVec2(1, 1), false, false},
		{"negative time", core.NewVec2(-0.1, 0), true, false},
		{"time at size", core.NewVec2(4, 0), true, false},
		{"freq at size", core.NewVec2(0, 2), true, false},
		{"nan", core.NewVec2(math.NaN(), 0), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Clear()
			ok := h.Put(tt.pos, []float64{2.5}, tt.active)
			if ok != tt.ok {
				t.Fatalf("Expected %v, got %v", tt.ok, ok)
			}
			total := h.Total()
			if tt.ok && math.Abs(total-2.5) > tolerance {
				t.Errorf("Expected 2.5 written, got %v", total)
			}
			if !tt.ok && total != 0 {
				t.Errorf("Expected no write, got total %v", total)
			}
		})
	}

	h.Clear()
	h.Put(core.NewVec2(1.7, 1), []float64{2.5}, true)
	if v, c := h.At(1, 1, 0); v != 2.5 || c != 1 {
		t.Errorf("Expected (2.5, 1) at bin (1,1), got (%v, %v)", v, c)
	}
}

func TestPut_Offset(t *testing.T) {
	h := mustNew(t, 4, 1, 1, WithOffset(0, 3))

	if h.Put(core.NewVec2(0, 0), []float64{1}, true) {
		t.Error("Expected band 0 to fall outside a window at band 3")
	}
	if !h.Put(core.NewVec2(2, 3), []float64{1}, true) {
		t.Fatal("Expected band 3 to be accepted")
	}
	if v, _ := h.At(2, 0, 0); v != 1 {
		t.Errorf("Expected value at local bin (2,0), got %v", v)
	}

	h.SetOffset(10, 0)
	if tOff, fOff := h.Offset(); tOff != 10 || fOff != 0 {
		t.Errorf("Expected offset (10,0), got (%d,%d)", tOff, fOff)
	}
}

func TestPut_Channels(t *testing.T) {
	h := mustNew(t, 2, 1, 3)
	if h.Put(core.NewVec2(0, 0), []float64{1, 2}, true) {
		t.Error("Expected too few values to be rejected")
	}
	h.Put(core.NewVec2(1, 0), []float64{1, 2, 3}, true)
	for ch, expected := range []float64{1, 2, 3} {
		if v, c := h.At(1, 0, ch); v != expected || c != 1 {
			t.Errorf("Channel %d: expected (%v, 1), got (%v, %v)", ch, expected, v, c)
		}
	}
}

func TestPutBatch(t *testing.T) {
	h := mustNew(t, 4, 1, 1)
	positions := []core.Vec2{
		core.NewVec2(0.5, 0),
		core.NewVec2(9, 0),
		core.NewVec2(3.2, 0),
		core.NewVec2(1, 0),
	}
	values := []float64{1, 2, 3, 4}
	active := Mask{true, true, true, false}

	result := h.PutBatch(positions, values, active)
	expected := Mask{true, false, true, false}
	for i := range expected {
		if result[i] != expected[i] {
			t.Errorf("Lane %d: expected %v, got %v", i, expected[i], result[i])
		}
	}
	if result.Count() != 2 || !result.Any() {
		t.Errorf("Expected 2 active lanes, got %d", result.Count())
	}
	if math.Abs(h.Total()-4) > tolerance {
		t.Errorf("Expected total 4, got %v", h.Total())
	}
}

func TestPutSpectrum(t *testing.T) {
	h := mustNew(t, 2, 1, 2)
	if !h.PutSpectrum(core.NewVec2(0, 0), []float64{1, 2}, true) {
		t.Fatal("Expected spectrum to be written")
	}
	if v, _ := h.At(0, 0, 1); v != 2 {
		t.Errorf("Expected channel 1 to hold 2, got %v", v)
	}
	if h.PutSpectrum(core.NewVec2(5, 0), []float64{1, 2}, true) {
		t.Error("Expected out of range spectrum to be rejected")
	}
	if h.PutSpectrum(core.NewVec2(0, 0), []float64{1}, true) {
		t.Error("Expected spectrum of wrong length to be rejected")
	}
}

func TestDiscretizeLinear_Monotonic(t *testing.T) {
	prev := DiscretizeLinear(0, 0, 1, 10)
	for v := 0.0; v < 1.0; v += 0.001 {
		bin := DiscretizeLinear(v, 0, 1, 10)
		if bin < prev {
			t.Fatalf("Expected monotonic bins, %v gave %d after %d", v, bin, prev)
		}
		if bin < 0 || bin > 9 {
			t.Fatalf("Expected bin in [0,9] for %v, got %d", v, bin)
		}
		prev = bin
	}

	// No bounds check
	if got := DiscretizeLinear(-0.05, 0, 1, 10); got != -1 {
		t.Errorf("Expected -1 below range, got %d", got)
	}
	if got := DiscretizeLinear(1.25, 0, 1, 10); got != 12 {
		t.Errorf("Expected 12 above range, got %d", got)
	}
}

func TestDiscretizePresetBins(t *testing.T) {
	edges := []float64{0, 1, 2, 5}
	tests := []struct {
		v        float64
		expected int
	}{
		{0, 0},
		{0.99, 0},
		{1.5, 1},
		{2, 2},
		{4.999, 2},
		{-1, InvalidBin},
		{5, InvalidBin},
		{math.NaN(), InvalidBin},
	}
	for _, tt := range tests {
		if got := DiscretizePresetBins(tt.v, edges); got != tt.expected {
			t.Errorf("DiscretizePresetBins(%v): expected %d, got %d", tt.v, tt.expected, got)
		}
	}
}

func TestPutSample(t *testing.T) {
	h := mustNew(t, 10, 3, 1,
		WithTimeRange(0, 1),
		WithFrequencyBins([]float64{0, 1, 2, 5}))

	tests := []struct {
		name    string
		time    float64
		freq    float64
		ok      bool
		timeBin int
		freqBin int
	}{
		{"inside", 0.55, 1.5, true, 5, 1},
		{"last bins", 0.999, 4.9, true, 9, 2},
		{"time at end", 1.0, 1.5, false, 0, 0},
		{"negative time", -0.01, 1.5, false, 0, 0},
		{"freq below edges", 0.5, -1, false, 0, 0},
		{"freq at last edge", 0.5, 5, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Clear()
			ok := h.PutSample(tt.time, tt.freq, []float64{1}, true)
			if ok != tt.ok {
				t.Fatalf("Expected %v, got %v", tt.ok, ok)
			}
			if ok {
				if v, _ := h.At(tt.timeBin, tt.freqBin, 0); v != 1 {
					t.Errorf("Expected value in bin (%d,%d)", tt.timeBin, tt.freqBin)
				}
			} else if h.Total() != 0 {
				t.Errorf("Expected no write, got %v", h.Total())
			}
		})
	}
}

func TestPutSample_LinearFrequency(t *testing.T) {
	h := mustNew(t, 4, 4, 1, WithTimeRange(0, 4), WithFrequencyRange(0, 8000))
	if !h.PutSample(1.5, 2500, []float64{1}, true) {
		t.Fatal("Expected sample to be accepted")
	}
	if v, _ := h.At(1, 1, 0); v != 1 {
		t.Errorf("Expected value in bin (1,1)")
	}
	if h.PutSample(1.5, 8000, []float64{1}, true) {
		t.Error("Expected frequency at upper bound to be rejected")
	}
}

func TestClear_Idempotent(t *testing.T) {
	h := mustNew(t, 4, 2, 1, WithFilter(filter.NewTent()))
	h.Put(core.NewVec2(1.2, 1), []float64{3}, true)
	h.Clear()
	h.Clear()
	for i := range h.Data() {
		if h.Data()[i] != 0 || h.Counts()[i] != 0 {
			t.Fatalf("Expected cleared buffers at %d", i)
		}
	}
}

func TestFilterSplat(t *testing.T) {
	h := mustNew(t, 6, 1, 1, WithFilter(filter.NewTent()))
	if h.BorderSize() != 1 {
		t.Fatalf("Expected border 1 for tent filter, got %d", h.BorderSize())
	}
	if len(h.Data()) != (6+2)*1 {
		t.Fatalf("Expected padded buffer of 8, got %d", len(h.Data()))
	}

	t.Run("bin centre", func(t *testing.T) {
		h.Clear()
		h.Put(core.NewVec2(2.5, 0), []float64{4}, true)
		if v, c := h.At(2, 0, 0); math.Abs(v-4) > tolerance || c != 1 {
			t.Errorf("Expected (4, 1) at centre bin, got (%v, %v)", v, c)
		}
		for _, tb := range []int{1, 3} {
			if v, c := h.At(tb, 0, 0); math.Abs(v) > tolerance || c != 1 {
				t.Errorf("Expected zero weight but counted neighbour at %d, got (%v, %v)", tb, v, c)
			}
		}
	})

	t.Run("bin edge", func(t *testing.T) {
		h.Clear()
		h.Put(core.NewVec2(2.0, 0), []float64{4}, true)
		for _, tb := range []int{1, 2} {
			if v, _ := h.At(tb, 0, 0); math.Abs(v-2) > tolerance {
				t.Errorf("Expected half weight at %d, got %v", tb, v)
			}
		}
		if math.Abs(h.Total()-4) > tolerance {
			t.Errorf("Expected total 4, got %v", h.Total())
		}
	})

	t.Run("into border", func(t *testing.T) {
		h.Clear()
		h.Put(core.NewVec2(0, 0), []float64{4}, true)
		if v, _ := h.At(-1, 0, 0); math.Abs(v-2) > tolerance {
			t.Errorf("Expected half the energy in the border bin, got %v", v)
		}
		if math.Abs(h.Total()-4) > tolerance {
			t.Errorf("Expected total 4 including border, got %v", h.Total())
		}
	})
}

func TestFilter_BoxWithoutBorder(t *testing.T) {
	h := mustNew(t, 4, 1, 1, WithFilter(filter.NewBox()))
	if h.BorderSize() != 0 {
		t.Errorf("Expected no border for box filter, got %d", h.BorderSize())
	}
	h2 := mustNew(t, 4, 1, 1, WithFilter(filter.NewGaussian()), WithBorder(false))
	if h2.BorderSize() != 0 {
		t.Errorf("Expected border disabled, got %d", h2.BorderSize())
	}
}

func TestMerge_Additive(t *testing.T) {
	random := rand.New(rand.NewSource(42))
	a := mustNew(t, 16, 4, 1)
	b := mustNew(t, 16, 4, 1)
	sum := mustNew(t, 16, 4, 1)

	for i := 0; i < 200; i++ {
		pos := core.NewVec2(random.Float64()*16, float64(random.Intn(4)))
		v := random.Float64()
		if random.Intn(2) == 0 {
			a.Put(pos, []float64{v}, true)
		} else {
			b.Put(pos, []float64{v}, true)
		}
		sum.Put(pos, []float64{v}, true)
	}

	merged := mustNew(t, 16, 4, 1)
	if err := merged.Merge(a); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := merged.Merge(b); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	for i := range sum.Data() {
		if math.Abs(merged.Data()[i]-sum.Data()[i]) > 1e-12 {
			t.Fatalf("Index %d: expected %v, got %v", i, sum.Data()[i], merged.Data()[i])
		}
		if merged.Counts()[i] != sum.Counts()[i] {
			t.Fatalf("Index %d: expected count %d, got %d", i, sum.Counts()[i], merged.Counts()[i])
		}
	}
}

func TestMerge_Offsets(t *testing.T) {
	film := mustNew(t, 10, 4, 1)

	band := mustNew(t, 10, 1, 1, WithOffset(0, 2))
	band.Put(core.NewVec2(3, 2), []float64{5}, true)
	if err := film.Merge(band); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if v, c := film.At(3, 2, 0); v != 5 || c != 1 {
		t.Errorf("Expected (5, 1) at film bin (3,2), got (%v, %v)", v, c)
	}

	window := mustNew(t, 2, 1, 1, WithOffset(8, 0))
	window.Put(core.NewVec2(9, 0), []float64{1}, true)
	film.Merge(window)
	if v, _ := film.At(9, 0, 0); v != 1 {
		t.Errorf("Expected value at film bin (9,0), got %v", v)
	}

	// Partially outside the film
	overhang := mustNew(t, 4, 1, 1, WithOffset(8, 3))
	overhang.Put(core.NewVec2(11, 3), []float64{7}, true)
	overhang.Put(core.NewVec2(8, 3), []float64{1}, true)
	film.Merge(overhang)
	if v, _ := film.At(8, 3, 0); v != 1 {
		t.Errorf("Expected overlapping part to merge, got %v", v)
	}
	if math.Abs(film.Total()-7) > tolerance {
		t.Errorf("Expected non-overlapping part to be dropped, total %v", film.Total())
	}
}

func TestMerge_FilteredIntoFilm(t *testing.T) {
	film := mustNew(t, 6, 3, 1)
	task := mustNew(t, 6, 1, 1, WithOffset(0, 1), WithFilter(filter.NewTent()))
	task.Put(core.NewVec2(2.0, 1), []float64{4}, true)
	task.Put(core.NewVec2(0.0, 1), []float64{4}, true)

	if err := film.Merge(task); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	expected := []float64{2, 2, 2, 0, 0, 0}
	for tb, e := range expected {
		if v, _ := film.At(tb, 1, 0); math.Abs(v-e) > tolerance {
			t.Errorf("Time bin %d: expected %v, got %v", tb, e, v)
		}
	}
}

func TestMerge_NoOverlapAndMismatch(t *testing.T) {
	film := mustNew(t, 4, 2, 1)
	outside := mustNew(t, 4, 1, 1, WithOffset(0, 5))
	outside.Put(core.NewVec2(1, 5), []float64{1}, true)
	if err := film.Merge(outside); err != nil {
		t.Errorf("Expected no error for disjoint merge, got %v", err)
	}
	if film.Total() != 0 {
		t.Errorf("Expected disjoint merge to be a no-op, got %v", film.Total())
	}

	stereo := mustNew(t, 4, 2, 2)
	if err := film.Merge(stereo); !errors.Is(err, core.ErrConfig) {
		t.Errorf("Expected ErrConfig for channel mismatch, got %v", err)
	}
}
