package report

import (
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

var barColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
}

// PlotR2 draws a grouped bar chart of R² per zone and algorithm and saves
// it to filename. The image format follows the file extension.
func PlotR2(rows []BiasRow, filename string) error {
	if len(rows) == 0 {
		return errors.NewValueError("PlotR2", "no rows to plot")
	}

	var zones []string
	zoneIdx := map[string]int{}
	algos := map[string]bool{}
	for _, r := range rows {
		if _, ok := zoneIdx[r.Zone]; !ok {
			zoneIdx[r.Zone] = len(zones)
			zones = append(zones, r.Zone)
		}
		algos[r.Algorithm] = true
	}
	algoNames := make([]string, 0, len(algos))
	for a := range algos {
		algoNames = append(algoNames, a)
	}
	sort.Strings(algoNames)

	p := plot.New()
	p.Title.Text = "R² by zone and algorithm"
	p.Y.Label.Text = "R²"

	width := vg.Points(60 / float64(len(algoNames)+1))
	for i, a := range algoNames {
		values := make(plotter.Values, len(zones))
		for _, r := range rows {
			if r.Algorithm == a {
				values[zoneIdx[r.Zone]] = r.R2
			}
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return errors.Wrapf(err, "bar chart for %s", a)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = barColors[i%len(barColors)]
		bars.Offset = vg.Length(float64(i)-float64(len(algoNames)-1)/2) * width
		p.Add(bars)
		p.Legend.Add(a, bars)
	}
	p.Legend.Top = true
	p.NominalX(zones...)

	w := vg.Length(2+len(zones)) * vg.Inch
	if err := p.Save(w, 4*vg.Inch, filename); err != nil {
		return errors.Wrap(err, "save R² chart")
	}
	return nil
}
