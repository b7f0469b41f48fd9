// Package profile runs a loaded program for a fixed instruction budget,
// sampling retirement rate and trap frequency at a fixed interval, and
// renders the result as a PNG chart pair with gonum.org/v1/plot.
package profile

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/hart"
)

// Sample is one interval's worth of counter deltas.
type Sample struct {
	Instructions uint64 // instret delta over the interval
	Cycles       uint64 // mcycle delta over the interval
}

// Result is the full run's collected samples and trap tally, ready to
// chart or inspect directly.
type Result struct {
	Samples    []Sample
	TrapCounts map[uint32]uint64 // keyed by cause code
}

// tallyTracer only cares about Trap calls; the other Tracer methods are
// no-ops. It is the only Tracer Run installs; it does not forward to any
// other Tracer.
type tallyTracer struct {
	counts map[uint32]uint64
}

func (t *tallyTracer) Instr(pc, raw uint32, instrLen int, rd int, rdVal uint32, rdSet bool, nextPC uint32) {
}
func (t *tallyTracer) CSRWrite(addr uint16, value uint32) {}
func (t *tallyTracer) PrivChange(from, to uint)            {}
func (t *tallyTracer) Trap(cause, nextPC uint32) {
	t.counts[cause]++
}

// Run steps h for exactly budget instructions (a budget of 0 runs
// nothing), sampling mcycle/minstret every interval instructions.
func Run(h *hart.Hart, c *csr.File, budget uint64, interval uint64) Result {
	if interval == 0 {
		interval = 1000
	}
	tracer := &tallyTracer{counts: make(map[uint32]uint64)}

	res := Result{TrapCounts: tracer.counts}
	prevCycle, prevInstret := c.Counters()

	var retired uint64
	for retired < budget {
		h.Step(tracer)
		retired++

		if retired%interval == 0 {
			cycle, instret := c.Counters()
			res.Samples = append(res.Samples, Sample{
				Instructions: instret - prevInstret,
				Cycles:       cycle - prevCycle,
			})
			prevCycle, prevInstret = cycle, instret
		}
	}

	return res
}

// WriteRatePNG renders the instructions-retired-per-interval line chart.
func (r Result) WriteRatePNG(path string) error {
	pts := make(plotter.XYs, len(r.Samples))
	for i, s := range r.Samples {
		pts[i].X = float64(i)
		pts[i].Y = float64(s.Instructions)
	}

	p := plot.New()
	p.Title.Text = "instructions retired per interval"
	p.X.Label.Text = "interval"
	p.Y.Label.Text = "instructions"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("profile: rate chart: %w", err)
	}
	p.Add(line)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("profile: save rate chart: %w", err)
	}
	return nil
}

// WriteTrapHistogramPNG renders a bar chart of trap counts by cause code.
func (r Result) WriteTrapHistogramPNG(path string) error {
	if len(r.TrapCounts) == 0 {
		return fmt.Errorf("profile: no traps recorded, nothing to chart")
	}

	causes := make([]uint32, 0, len(r.TrapCounts))
	for cause := range r.TrapCounts {
		causes = append(causes, cause)
	}
	// Deterministic ordering: sort by cause code ascending.
	for i := 1; i < len(causes); i++ {
		for j := i; j > 0 && causes[j-1] > causes[j]; j-- {
			causes[j-1], causes[j] = causes[j], causes[j-1]
		}
	}

	values := make(plotter.Values, len(causes))
	for i, cause := range causes {
		values[i] = float64(r.TrapCounts[cause])
	}

	p := plot.New()
	p.Title.Text = "trap counts by cause"
	p.Y.Label.Text = "count"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("profile: trap histogram: %w", err)
	}
	p.Add(bars)

	names := make([]string, len(causes))
	for i, cause := range causes {
		names[i] = fmt.Sprintf("%d", cause)
	}
	p.NominalX(names...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("profile: save trap histogram: %w", err)
	}
	return nil
}
