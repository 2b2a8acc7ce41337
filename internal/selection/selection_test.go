// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

func sampleAtoms() []types.Atom {
	return []types.Atom{
		{Name: "C02", Symbol: "C", Residue: "LIG", ResID: 248, Segment: "A"},
		{Name: "H02", Symbol: "H", Residue: "LIG", ResID: 248, Segment: "A"},
		{Name: "OE2", Symbol: "O", Residue: "GLU", ResID: 164, Segment: "A"},
		{Name: "CD", Symbol: "C", Residue: "GLU", ResID: 164, Segment: "A"},
		{Name: "NE2", Symbol: "N", Residue: "HIE", ResID: 94, Segment: "A"},
		{Name: "OW", Symbol: "O", Residue: "WAT", ResID: 1001, Segment: "W"},
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Pattern
		wantErr bool
	}{
		{in: "*:LIG.248:C02", want: Pattern{Segment: "*", Residue: "LIG", ResID: "248", Atom: "C02"}},
		{in: "*:GLU.164:*", want: Pattern{Segment: "*", Residue: "GLU", ResID: "164", Atom: "*"}},
		{in: "A:LIG.*:H02", want: Pattern{Segment: "A", Residue: "LIG", ResID: "*", Atom: "H02"}},
		{in: "*:WAT:*", want: Pattern{Segment: "*", Residue: "WAT", ResID: "*", Atom: "*"}},
		{in: "LIG.248:C02", wantErr: true},
		{in: "*::C02", wantErr: true},
		{in: "*:.248:C02", wantErr: true},
		{in: "*:LIG.248:[", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Segment, got.Segment)
			assert.Equal(t, tt.want.Residue, got.Residue)
			assert.Equal(t, tt.want.ResID, got.ResID)
			assert.Equal(t, tt.want.Atom, got.Atom)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestSelect(t *testing.T) {
	atoms := sampleAtoms()

	idx, err := Select(atoms, "*:LIG.248:*", "*:GLU.164:*", "*:HIE.94:*")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, idx)

	idx, err = Select(atoms, "W:*:*")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, idx)

	idx, err = Select(atoms, "*:GLU.*:O*")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, idx)

	idx, err = Select(atoms, "*:ALA.1:CA")
	require.NoError(t, err)
	assert.Empty(t, idx)
}

func TestOrdered(t *testing.T) {
	atoms := sampleAtoms()

	idx, err := Ordered(atoms, []string{"*:LIG.*:C02", "*:LIG.*:H02", "*:GLU.164:OE2"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, idx)

	idx, err = Ordered(atoms, []string{"*:GLU.164:OE2", "*:LIG.*:C02"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, idx)

	_, err = Ordered(atoms, []string{"*:GLU.164:*"})
	assert.ErrorContains(t, err, "matches 2 atoms")

	_, err = Ordered(atoms, []string{"*:ALA.1:CA"})
	assert.ErrorContains(t, err, "matches no atoms")
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 7}, Union([]int{3, 1}, []int{2, 3}, []int{7}))
	assert.Nil(t, Union())
}
