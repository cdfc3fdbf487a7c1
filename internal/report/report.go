// Package report renders discovery runs as convergence charts.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/roach88/hybridsr/internal/hybrid"
)

// Chart dimensions.
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// ErrNoData is returned when no iteration has a finite diagnostic to draw.
var ErrNoData = errors.New("report: no finite iteration data")

// Format returns the chart format for path: "png" or "svg".
func Format(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", ".svg":
		return ext[1:], nil
	default:
		return "", fmt.Errorf("report: unsupported chart extension %q (want .png or .svg)", ext)
	}
}

// ConvergenceChart draws the fit correlation and relative residual norm of
// each iteration and saves it to path. The format follows the extension.
func ConvergenceChart(iterations []hybrid.IterationSummary, path string) (err error) {
	format, err := Format(path)
	if err != nil {
		return err
	}
	p, err := convergencePlot(iterations)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("report: %w", cerr)
		}
	}()
	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// WriteChart renders the chart to w in format "png" or "svg".
func WriteChart(w io.Writer, iterations []hybrid.IterationSummary, format string) error {
	if format != "png" && format != "svg" {
		return fmt.Errorf("report: unsupported chart format %q", format)
	}
	p, err := convergencePlot(iterations)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func convergencePlot(iterations []hybrid.IterationSummary) (*plot.Plot, error) {
	corr := series(iterations, func(it hybrid.IterationSummary) float64 { return it.Correlation })
	norm := series(iterations, func(it hybrid.IterationSummary) float64 { return it.ResidualNorm })
	if len(corr) == 0 && len(norm) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Convergence"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "value"
	p.Y.Min = 0
	p.Legend.Top = true

	var lines []any
	if len(corr) > 0 {
		lines = append(lines, "correlation", corr)
	}
	if len(norm) > 0 {
		lines = append(lines, "residual norm", norm)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return p, nil
}

// series collects the finite values of one diagnostic against iteration.
func series(iterations []hybrid.IterationSummary, value func(hybrid.IterationSummary) float64) plotter.XYs {
	var xys plotter.XYs
	for _, it := range iterations {
		v := value(it)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(it.Iteration), Y: v})
	}
	return xys
}
