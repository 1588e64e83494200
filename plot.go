package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotResults renders the benchmark CSV as a grouped bar chart of mean
// latency per structure and test type.
func plotResults(csvPath, outPath string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("read %s: %w", csvPath, err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("%s: no result rows", csvPath)
	}

	// Mean LatencyNs over configs, keyed by structure and test type.
	type cell struct {
		sum float64
		n   int
	}
	cells := map[string]map[string]*cell{}
	testTypes := map[string]bool{}
	for _, row := range rows[1:] {
		if len(row) < 4 {
			continue
		}
		structure, testType := row[0], row[2]
		lat, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return fmt.Errorf("%s: bad latency %q: %w", csvPath, row[3], err)
		}
		if cells[structure] == nil {
			cells[structure] = map[string]*cell{}
		}
		if cells[structure][testType] == nil {
			cells[structure][testType] = &cell{}
		}
		cells[structure][testType].sum += lat
		cells[structure][testType].n++
		testTypes[testType] = true
	}

	structures := make([]string, 0, len(cells))
	for s := range cells {
		structures = append(structures, s)
	}
	sort.Strings(structures)
	types := make([]string, 0, len(testTypes))
	for tt := range testTypes {
		types = append(types, tt)
	}
	sort.Strings(types)

	p := plot.New()
	p.Title.Text = "Index latency by workload"
	p.Y.Label.Text = "ns/op (mean over configs)"

	barWidth := vg.Points(15)
	for si, s := range structures {
		values := make(plotter.Values, len(types))
		for ti, tt := range types {
			if c := cells[s][tt]; c != nil && c.n > 0 {
				values[ti] = c.sum / float64(c.n)
			}
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(si)
		bars.Offset = vg.Length(si-len(structures)/2) * barWidth
		p.Add(bars)
		p.Legend.Add(s, bars)
	}
	p.Legend.Top = true
	p.NominalX(types...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
