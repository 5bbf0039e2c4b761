package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddSystems(t *testing.T) {
	s := openTemp(t)

	systems := []System{
		{
			Species:   []string{"O", "H", "H"},
			Positions: []float64{0, 0, 0.22, 0, 1.43, -0.89, 0, -1.43, -0.89},
			Properties: map[string]Array{
				"energy": {Shape: []int{1}, Data: []float64{-76.32}},
				"forces": {
					Shape: []int{3, 3},
					Data:  []float64{0, 0, 1, 0, 2, 0, 3, 0, 0},
				},
			},
		},
		{
			Species:   []string{"H", "H"},
			Positions: []float64{0, 0, 0, 0, 0, 1.4},
			Properties: map[string]Array{
				"energy": {Shape: []int{1}, Data: []float64{-1.17}},
			},
		},
	}
	require.NoError(t, s.AddSystems(systems))

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Systems()
	require.NoError(t, err)
	assert.Equal(t, systems, got)
}

func TestMetadata(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.SetMetadata(map[string]string{"properties": "energy"}))
	require.NoError(t, s.SetMetadata(map[string]string{"properties": "energy forces"}))

	md, err := s.Metadata()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"properties": "energy forces"}, md)
}

func TestOpenCreatesSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.AddSystems([]System{{Species: []string{"H"}, Positions: []float64{0, 0, 0}}}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	n, err := s2.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
