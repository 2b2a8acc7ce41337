// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package structure

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

func sampleState() *types.SystemState {
	return &types.SystemState{
		Label: "7tim",
		Atoms: []types.Atom{
			{Name: "C02", Symbol: "C", Residue: "LIG", ResID: 248, Segment: "A"},
			{Name: "H02", Symbol: "H", Residue: "LIG", ResID: 248, Segment: "A"},
			{Name: "OE2", Symbol: "O", Residue: "GLU", ResID: 164, Segment: "B"},
		},
		Coordinates: []float64{
			0, 0, 0,
			1.09, 0, 0,
			2.5, 0.5, -0.25,
		},
		QCRegion:   []int{0, 1},
		FixedAtoms: []int{2},
		Energy:     -1234.5,
	}
}

func TestWritePDB(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDB(&buf, sampleState()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "REMARK"))
	assert.True(t, strings.HasPrefix(lines[1], "HETATM"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "HETATM"), lines[2])
	assert.Equal(t, "TER", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "ATOM  "), lines[4])
	assert.Contains(t, lines[4], "GLU B 164")
	assert.Contains(t, lines[4], "  0.00") // fixed atom occupancy
	assert.Equal(t, "END", lines[5])
}

func TestWriteXYZ(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXYZ(&buf, sampleState()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "3", lines[0])
	assert.Contains(t, lines[1], "7tim")
	assert.Equal(t, "O      2.500000     0.500000    -0.250000", lines[4])
}

func TestWriters_RejectMismatchedCoordinates(t *testing.T) {
	s := sampleState()
	s.Coordinates = s.Coordinates[:6]

	assert.Error(t, WritePDB(&bytes.Buffer{}, s))
	assert.Error(t, WriteXYZ(&bytes.Buffer{}, s))
	assert.Error(t, WriteXYZ(&bytes.Buffer{}, nil))
}

func TestProfile_FromScanAndRefinement(t *testing.T) {
	s := sampleState()
	s.Scan = []types.ScanFrame{
		{Step: 0, Values: []float64{-1.2, 0}, Energy: -100},
		{Step: 1, Values: []float64{-1.1, 0}, Energy: -90},
	}
	pts := Profile(s)
	require.Len(t, pts, 2)
	assert.Equal(t, -1.1, pts[1].Coordinate)

	s.Profile = []types.ProfilePoint{{Step: 0, Coordinate: 1, Energy: 5}}
	assert.Len(t, Profile(s), 1)
}

func TestSummarize(t *testing.T) {
	pts := []types.ProfilePoint{
		{Step: 0, Coordinate: -1.0, Energy: -500},
		{Step: 1, Coordinate: -0.5, Energy: -440},
		{Step: 2, Coordinate: 0.0, Energy: -420},
		{Step: 3, Coordinate: 0.5, Energy: -480},
	}
	got := Summarize(pts)
	assert.Equal(t, 4, got.Points)
	assert.InDelta(t, 80, got.Barrier, 1e-9)
	assert.Equal(t, 2, got.BarrierStep)
	assert.InDelta(t, 20, got.ReactionEnergy, 1e-9)

	assert.Equal(t, ProfileSummary{}, Summarize(nil))
}

func TestWriteProfileCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProfileCSV(&buf, []types.ProfilePoint{
		{Step: 0, Coordinate: -1, Energy: -10},
		{Step: 1, Coordinate: 0, Energy: -4},
	}))
	want := "step,coordinate,energy,relative_energy\n" +
		"0,-1.0000,-10.000000,0.000000\n" +
		"1,0.0000,-4.000000,6.000000\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteProfilePNG(t *testing.T) {
	var buf bytes.Buffer
	err := WriteProfilePNG(&buf, "scan", []types.ProfilePoint{
		{Step: 0, Coordinate: -1, Energy: -10},
		{Step: 1, Coordinate: 0, Energy: -4},
		{Step: 2, Coordinate: 1, Energy: -8},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	assert.Error(t, WriteProfilePNG(&bytes.Buffer{}, "empty", nil))
}
