package gaze

import (
	"math"
	"sort"
)

// Focus bands for the centre ratio
const (
	FocusConcentrated = "concentrated"
	FocusDistributed  = "distributed"
	FocusScattered    = "scattered"
)

// Grid accumulates gaze points into a fixed number of cells spanning the window
type Grid struct {
	cols, rows int
	window     Size
	counts     []int
	total      int
}

// Cell is a grid cell with its visit count
type Cell struct {
	Col   int `json:"col"`
	Row   int `json:"row"`
	Count int `json:"count"`
}

// NewGrid creates an empty cols x rows grid over the window
func NewGrid(cols, rows int, window Size) *Grid {
	return &Grid{
		cols:   cols,
		rows:   rows,
		window: window,
		counts: make([]int, cols*rows),
	}
}

// Record adds one visit to the cell containing p
func (g *Grid) Record(p Point) {
	cx := cellIndex(p.X, float64(g.window.Width)/float64(g.cols), g.cols)
	cy := cellIndex(p.Y, float64(g.window.Height)/float64(g.rows), g.rows)
	g.counts[cy*g.cols+cx]++
	g.total++
}

func cellIndex(v, cellSize float64, n int) int {
	i := int(math.Floor(v / cellSize))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Reset clears all counts
func (g *Grid) Reset() {
	for i := range g.counts {
		g.counts[i] = 0
	}
	g.total = 0
}

// Total returns the number of recorded points
func (g *Grid) Total() int {
	return g.total
}

// Dims returns the grid's columns and rows
func (g *Grid) Dims() (cols, rows int) {
	return g.cols, g.rows
}

// Count returns the visits of one cell
func (g *Grid) Count(col, row int) int {
	return g.counts[row*g.cols+col]
}

// Counts returns a copy of the counts, row-major
func (g *Grid) Counts() []int {
	out := make([]int, len(g.counts))
	copy(out, g.counts)
	return out
}

// CenterRatio is the percentage of visits inside the central half of the
// grid in both directions, or 0 when nothing was recorded.
func (g *Grid) CenterRatio() float64 {
	if g.total == 0 {
		return 0
	}
	var center int
	for row := g.rows / 4; row < 3*g.rows/4; row++ {
		for col := g.cols / 4; col < 3*g.cols/4; col++ {
			center += g.counts[row*g.cols+col]
		}
	}
	return float64(center) / float64(g.total) * 100
}

// FocusLabel classifies the centre ratio
func (g *Grid) FocusLabel() string {
	return FocusBand(g.CenterRatio())
}

// FocusBand classifies a centre ratio in percent
func FocusBand(ratio float64) string {
	switch {
	case ratio > 60:
		return FocusConcentrated
	case ratio > 30:
		return FocusDistributed
	default:
		return FocusScattered
	}
}

// Intensity returns counts scaled to [0,1] by the busiest cell
func (g *Grid) Intensity() []float64 {
	out := make([]float64, len(g.counts))
	peak := 0
	for _, c := range g.counts {
		if c > peak {
			peak = c
		}
	}
	if peak == 0 {
		return out
	}
	for i, c := range g.counts {
		out[i] = float64(c) / float64(peak)
	}
	return out
}

// Hotspots returns the n busiest cells, busiest first
func (g *Grid) Hotspots(n int) []Cell {
	var cells []Cell
	for i, c := range g.counts {
		if c > 0 {
			cells = append(cells, Cell{Col: i % g.cols, Row: i / g.cols, Count: c})
		}
	}
	sort.SliceStable(cells, func(i, j int) bool {
		return cells[i].Count > cells[j].Count
	})
	if len(cells) > n {
		cells = cells[:n]
	}
	return cells
}
