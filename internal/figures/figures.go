// Package figures renders run and sweep results to PNG with gonum/plot.
package figures

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/contractsim/internal/analysis"
	"github.com/san-kum/contractsim/internal/sim"
)

var ErrNoData = errors.New("figures: nothing to plot")

var (
	black = color.RGBA{A: 255}
	grey  = color.RGBA{R: 110, G: 110, B: 110, A: 255}
)

const (
	widthIn  = 6.0
	heightIn = 4.5
	dpi      = 150
)

// limitedTicker produces at most maxLabels evenly spaced ticks.
func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.TextStyle.Font.Size = vg.Points(12)
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)
	p.X.LineStyle.Width = vg.Points(1.5)
	p.Y.LineStyle.Width = vg.Points(1.5)
	p.X.Padding = vg.Points(8)
	p.Y.Padding = vg.Points(8)
	p.X.Tick.Marker = limitedTicker(6, "%.0f")
	p.Y.Tick.Marker = limitedTicker(6, "%.2g")
	return p
}

func xy(xs, ys []float64, keep func(y float64) bool) plotter.XYs {
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if keep != nil && !keep(ys[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	return pts
}

func addLine(p *plot.Plot, pts plotter.XYs, c color.Color, dashed bool, legend string) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = c
	if dashed {
		line.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(3)}
	}
	p.Add(line)
	if legend != "" {
		p.Legend.Add(legend, line)
	}
	return nil
}

func addScatter(p *plot.Plot, pts plotter.XYs) error {
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = black
	sc.GlyphStyle.Radius = vg.Points(2.5)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(sc)
	return nil
}

// savePNG rasterises p onto a canvas of widthIn x heightIn inches.
func savePNG(p *plot.Plot, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

func minutes(times []float64) []float64 { return analysis.Scale(times, 1.0/60) }

// TipDynamics writes displacement and velocity of the pillar tip over time
// and returns the two file paths.
func TipDynamics(res *sim.Result, dir string) ([]string, error) {
	if res == nil || len(res.Times) == 0 {
		return nil, ErrNoData
	}
	tm := minutes(res.Times)
	tag := fmt.Sprintf("%s_k%g", res.Variant.Short(), res.Stiffness)

	disp := newPlot("Pillar tip displacement", "time (min)", "displacement (μm)")
	if err := addLine(disp, xy(tm, res.Displacements, nil), black, false, ""); err != nil {
		return nil, err
	}
	vel := newPlot("Pillar tip velocity", "time (min)", "velocity (μm/s)")
	if err := addLine(vel, xy(tm, res.Velocities, nil), black, false, ""); err != nil {
		return nil, err
	}

	paths := []string{
		filepath.Join(dir, tag+"_displacement.png"),
		filepath.Join(dir, tag+"_velocity.png"),
	}
	for i, p := range []*plot.Plot{disp, vel} {
		if err := savePNG(p, paths[i]); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// Power draws transmitted and dissipated power on a logarithmic axis.
// Non-positive samples cannot be shown on that axis and are dropped.
func Power(res *sim.Result, dir string) (string, error) {
	if res == nil || len(res.Times) == 0 {
		return "", ErrNoData
	}
	positive := func(y float64) bool { return y > 0 && !math.IsInf(y, 0) }
	tm := minutes(res.Times)
	tp := xy(tm, res.Transmitted, positive)
	dp := xy(tm, res.Dissipated, positive)
	if len(tp) == 0 && len(dp) == 0 {
		return "", fmt.Errorf("%w: no positive power samples", ErrNoData)
	}

	p := newPlot("Power", "time (min)", "power (aW)")
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	if len(tp) > 0 {
		if err := addLine(p, tp, black, false, "transmitted"); err != nil {
			return "", err
		}
	}
	if len(dp) > 0 {
		if err := addLine(p, dp, grey, true, "dissipated"); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_k%g_power.png", res.Variant.Short(), res.Stiffness))
	return path, savePNG(p, path)
}

// Sweep writes peak velocity and final force against pillar stiffness.
func Sweep(points []sim.SweepPoint, model, dir string) ([]string, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	kp := make([]float64, len(points))
	peak := make([]float64, len(points))
	final := make([]float64, len(points))
	for i, pt := range points {
		kp[i], peak[i], final[i] = pt.Stiffness, pt.PeakVelocity, pt.FinalForce
	}

	velo := newPlot("Peak velocity", "pillar stiffness (pN/μm)", "peak velocity (μm/s)")
	force := newPlot("Final force", "pillar stiffness (pN/μm)", "force (pN)")
	for _, pair := range []struct {
		p  *plot.Plot
		ys []float64
	}{{velo, peak}, {force, final}} {
		pts := xy(kp, pair.ys, nil)
		if err := addLine(pair.p, pts, grey, false, ""); err != nil {
			return nil, err
		}
		if err := addScatter(pair.p, pts); err != nil {
			return nil, err
		}
	}

	paths := []string{
		filepath.Join(dir, model+"_sweep_peak_velocity.png"),
		filepath.Join(dir, model+"_sweep_final_force.png"),
	}
	for i, p := range []*plot.Plot{velo, force} {
		if err := savePNG(p, paths[i]); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
