// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitProgress_UnknownModel(t *testing.T) {
	_, err := newSplitProgress("ancient", 2016)
	assert.Error(t, err)
}

func TestSplitProgress_ZigZagIssuance(t *testing.T) {
	sp, err := newSplitProgress("new", 2016)
	require.NoError(t, err)

	istart := sp.IStart
	want := []int64{istart, istart + 1, istart - 1, istart + 2, istart - 2}

	seen := map[string]bool{}
	for i, w := range want {
		sj, found := sp.issue("worker")
		require.True(t, found, "issuance %d", i)
		assert.Equal(t, w, sj.Index)
		assert.False(t, seen[sj.Subkey], "subkey %s reused", sj.Subkey)
		seen[sj.Subkey] = true
	}

	assert.Equal(t, len(want), popcount(sp.Progress))
	assert.Len(t, sp.InFlight, len(want))
}

func TestSplitProgress_ReleaseReissues(t *testing.T) {
	sp, err := newSplitProgress("new", 2016)
	require.NoError(t, err)

	sj, found := sp.issue("worker-a")
	require.True(t, found)

	require.True(t, sp.release(sj.Subkey))
	assert.Empty(t, sp.InFlight)
	assert.Equal(t, 0, popcount(sp.Progress))

	sj2, found := sp.issue("worker-b")
	require.True(t, found)
	assert.Equal(t, sj.Index, sj2.Index, "released index should be reissued first")
}

func TestSplitProgress_CompleteNoneKeepsBitSet(t *testing.T) {
	sp, err := newSplitProgress("new", 2016)
	require.NoError(t, err)

	sj, found := sp.issue("worker-a")
	require.True(t, found)

	assert.True(t, sp.completeNone(sj.Subkey))
	assert.Empty(t, sp.InFlight)
	assert.Equal(t, 1, popcount(sp.Progress), "bit stays set after a none result")
}

func TestSplitProgress_NextIndexDistinguishesZeroFromNone(t *testing.T) {
	sp := &SplitProgress{
		Base:     0,
		Count:    1,
		IStart:   0,
		Progress: make([]byte, 1),
		InFlight: make(map[string]*SubJob),
	}

	idx, found := sp.nextIndex()
	require.True(t, found)
	assert.Equal(t, int64(0), idx)

	sp.setBit(0)
	_, found = sp.nextIndex()
	assert.False(t, found, "space exhausted after the only index is taken")
}

func TestSplitProgress_Exhausted(t *testing.T) {
	sp := &SplitProgress{
		Base:     0,
		Count:    1,
		IStart:   0,
		Progress: make([]byte, 1),
		InFlight: make(map[string]*SubJob),
	}
	assert.False(t, sp.exhausted())

	sj, found := sp.issue("worker")
	require.True(t, found)
	assert.False(t, sp.exhausted(), "still in flight")

	sp.completeNone(sj.Subkey)
	assert.True(t, sp.exhausted())
}

func popcount(bitmap []byte) int {
	n := 0
	for _, b := range bitmap {
		for b != 0 {
			n += int(b & 1)
			b >>= 1
		}
	}
	return n
}
