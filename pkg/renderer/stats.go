package renderer

import "time"

// BandStats contains statistics about one (band, pass) task
type BandStats struct {
	Paths      int  // Microphone rays traced
	ValidPaths int  // Rays whose first intersection hit the scene
	Cancelled  bool // The task stopped before tracing every slot
}

// Add accumulates another task's statistics
func (bs *BandStats) Add(other BandStats) {
	bs.Paths += other.Paths
	bs.ValidPaths += other.ValidPaths
	bs.Cancelled = bs.Cancelled || other.Cancelled
}

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	Bands          int           // Frequency bands rendered
	Passes         int           // Passes per band
	TotalTasks     int           // Number of (band, pass) tasks
	CompletedTasks int           // Tasks that ran to the end
	PathsPerBand   int           // Paths each band receives in a complete render
	Paths          int           // Microphone rays traced over all tasks
	ValidPaths     int           // Rays whose first intersection hit the scene
	Duration       time.Duration // Wall-clock render time
	Cancelled      bool          // The render stopped early
}

// ValidFraction returns the share of rays that hit the scene
func (rs RenderStats) ValidFraction() float64 {
	if rs.Paths == 0 {
		return 0
	}
	return float64(rs.ValidPaths) / float64(rs.Paths)
}

// RenderResult is returned by a render
type RenderResult struct {
	RunID string // Unique id of this render invocation
	Stats RenderStats
}

// Progress describes the state of a render after a task completes
type Progress struct {
	RunID      string
	TasksDone  int
	TotalTasks int
	Band       int // Band of the task that just finished
	Pass       int // Pass of the task that just finished
}

// Fraction returns the completed share of the render in [0, 1]
func (p Progress) Fraction() float64 {
	if p.TotalTasks == 0 {
		return 0
	}
	return float64(p.TasksDone) / float64(p.TotalTasks)
}
