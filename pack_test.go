package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overlaps(a, b Placement) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func TestPackSquareTiles(t *testing.T) {
	boxes := []Box{{256, 256}, {256, 256}, {256, 256}, {256, 256}}
	w, h, placed, err := Pack(boxes)
	require.NoError(t, err)
	assert.Equal(t, 512, w)
	assert.Equal(t, 512, h)
	assert.Equal(t, []Placement{
		{Index: 0, X: 0, Y: 0, W: 256, H: 256},
		{Index: 1, X: 256, Y: 0, W: 256, H: 256},
		{Index: 2, X: 0, Y: 256, W: 256, H: 256},
		{Index: 3, X: 256, Y: 256, W: 256, H: 256},
	}, placed)
}

func TestPackLargestFirst(t *testing.T) {
	_, _, placed, err := Pack([]Box{{10, 10}, {100, 50}, {50, 100}, {20, 20}})
	require.NoError(t, err)
	require.Len(t, placed, 4)
	// equal areas break ties on height, then input order
	assert.Equal(t, []int{2, 1, 3, 0}, []int{placed[0].Index, placed[1].Index, placed[2].Index, placed[3].Index})
}

func TestPackSoundness(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rnd.Intn(40)
		boxes := make([]Box, n)
		for i := range boxes {
			boxes[i] = Box{W: 1 + rnd.Intn(300), H: 1 + rnd.Intn(300)}
		}
		w, h, placed, err := Pack(boxes)
		require.NoError(t, err)
		require.Len(t, placed, n)

		seen := make(map[int]bool)
		for i, p := range placed {
			assert.False(t, seen[p.Index])
			seen[p.Index] = true
			assert.Equal(t, boxes[p.Index], Box{W: p.W, H: p.H})
			assert.True(t, p.X >= 0 && p.Y >= 0 && p.X+p.W <= w && p.Y+p.H <= h, "trial %d: placement %d out of bounds", trial, i)
			for _, q := range placed[i+1:] {
				assert.False(t, overlaps(p, q), "trial %d: %v overlaps %v", trial, p, q)
			}
		}

		w2, h2, placed2, err := Pack(boxes)
		require.NoError(t, err)
		assert.Equal(t, w, w2)
		assert.Equal(t, h, h2)
		assert.Equal(t, placed, placed2)
	}
}

func TestPackInvalid(t *testing.T) {
	_, _, _, err := Pack([]Box{{10, 10}, {0, 5}})
	assert.ErrorIs(t, err, ErrInvalidBox)

	w, h, placed, err := Pack(nil)
	assert.NoError(t, err)
	assert.Zero(t, w)
	assert.Zero(t, h)
	assert.Empty(t, placed)
}
