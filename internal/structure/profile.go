// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package structure

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// ProfileSummary condenses an energy profile into the quantities reported
// for a reaction path. Energies are relative to the first point.
type ProfileSummary struct {
	Points         int
	Barrier        float64
	BarrierStep    int
	ReactionEnergy float64
}

// Profile returns the energy profile of s: refined points when present,
// otherwise the relaxed scan frames projected on their first coordinate.
func Profile(s *types.SystemState) []types.ProfilePoint {
	if len(s.Profile) > 0 {
		return append([]types.ProfilePoint(nil), s.Profile...)
	}
	out := make([]types.ProfilePoint, 0, len(s.Scan))
	for _, f := range s.Scan {
		var x float64
		if len(f.Values) > 0 {
			x = f.Values[0]
		}
		out = append(out, types.ProfilePoint{Step: f.Step, Coordinate: x, Energy: f.Energy})
	}
	return out
}

// Summarize computes barrier and reaction energy of a profile.
func Summarize(points []types.ProfilePoint) ProfileSummary {
	if len(points) == 0 {
		return ProfileSummary{}
	}
	rel := relative(points)
	imax := floats.MaxIdx(rel)
	return ProfileSummary{
		Points:         len(points),
		Barrier:        rel[imax],
		BarrierStep:    points[imax].Step,
		ReactionEnergy: rel[len(rel)-1],
	}
}

func relative(points []types.ProfilePoint) []float64 {
	e := make([]float64, len(points))
	for i, p := range points {
		e[i] = p.Energy
	}
	floats.AddConst(-e[0], e)
	return e
}

// WriteProfileCSV writes step, coordinate, absolute and relative energy.
func WriteProfileCSV(w io.Writer, points []types.ProfilePoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "coordinate", "energy", "relative_energy"}); err != nil {
		return err
	}
	if len(points) > 0 {
		rel := relative(points)
		for i, p := range points {
			row := []string{
				strconv.Itoa(p.Step),
				strconv.FormatFloat(p.Coordinate, 'f', 4, 64),
				strconv.FormatFloat(p.Energy, 'f', 6, 64),
				strconv.FormatFloat(rel[i], 'f', 6, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProfilePNG renders the relative energy profile as a PNG line plot.
func WriteProfilePNG(w io.Writer, name string, points []types.ProfilePoint) error {
	if len(points) == 0 {
		return fmt.Errorf("profile %s has no points", name)
	}
	rel := relative(points)
	xys := make(plotter.XYs, len(points))
	for i, p := range points {
		xys[i].X = p.Coordinate
		xys[i].Y = rel[i]
	}

	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "Reaction coordinate (Å)"
	p.Y.Label.Text = "Relative energy (kJ/mol)"

	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("building profile line: %w", err)
	}
	points2, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("building profile points: %w", err)
	}
	p.Add(line, points2, plotter.NewGrid())

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("rendering profile: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
