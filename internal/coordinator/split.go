// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package coordinator

import "fmt"

// modelBounds gives the upper limit of the mii-lfcs search space for each
// console model, already right-shifted by 16 per the spec's reduced
// 32-bit space.
var modelBounds = map[string]int64{
	"old": 0x0B000000 >> 16,
	"new": 0x05000000 >> 16,
}

// modelYearStart centres the search on the index a console of that model
// and manufacture year is expected to fall near. Years outside this table
// fall back to the middle of the model's range.
var modelYearStart = map[string]map[int]int64{
	"old": {
		2011: 0x00000000 >> 16,
		2012: 0x02800000 >> 16,
		2013: 0x05000000 >> 16,
		2014: 0x07800000 >> 16,
		2015: 0x09800000 >> 16,
	},
	"new": {
		2014: 0x00000000 >> 16,
		2015: 0x01800000 >> 16,
		2016: 0x03000000 >> 16,
	},
}

// SubJob is one offset issued by the split dispatcher for a mii-lfcs job.
type SubJob struct {
	Subkey   string `json:"subkey"`
	Index    int64  `json:"index"`
	Assignee string `json:"assignee"`
}

// SplitProgress is the per-parent dispatcher state for a mii-lfcs job: a
// bounded index space, a done/in-flight bitmap over it, and the set of
// currently issued-but-unresolved sub-jobs.
type SplitProgress struct {
	Base     int64
	Count    int64
	IStart   int64
	Progress []byte
	InFlight map[string]*SubJob
}

// newSplitProgress builds the dispatcher state for a freshly prepared
// mii-lfcs job, given its console model and optional manufacture year.
func newSplitProgress(model string, year int) (*SplitProgress, error) {
	max, ok := modelBounds[model]
	if !ok {
		return nil, fmt.Errorf("coordinator: unknown mii-lfcs model %q", model)
	}

	base := int64(0)
	count := max - base

	start, ok := modelYearStart[model][year]
	if !ok {
		start = count / 2
	}
	istart := start - base

	return &SplitProgress{
		Base:     base,
		Count:    count,
		IStart:   istart,
		Progress: make([]byte, (count+7)/8),
		InFlight: make(map[string]*SubJob),
	}, nil
}

func (s *SplitProgress) clone() *SplitProgress {
	cp := &SplitProgress{
		Base:     s.Base,
		Count:    s.Count,
		IStart:   s.IStart,
		Progress: append([]byte(nil), s.Progress...),
		InFlight: make(map[string]*SubJob, len(s.InFlight)),
	}
	for k, v := range s.InFlight {
		sj := *v
		cp.InFlight[k] = &sj
	}
	return cp
}

func (s *SplitProgress) bitSet(idx int64) bool {
	return s.Progress[idx/8]&(1<<uint(idx%8)) != 0
}

func (s *SplitProgress) setBit(idx int64) {
	s.Progress[idx/8] |= 1 << uint(idx%8)
}

func (s *SplitProgress) clearBit(idx int64) {
	s.Progress[idx/8] &^= 1 << uint(idx%8)
}

// nextIndex walks the zig-zag sequence 0, +1, -1, +2, -2, ... centred on
// IStart and returns the first index in [0, Count) whose progress bit is
// unset. found distinguishes "no index available" from "index 0", since
// the latter is a perfectly valid result.
func (s *SplitProgress) nextIndex() (idx int64, found bool) {
	if s.tryBit(s.IStart) {
		return s.IStart, true
	}
	for d := int64(1); d <= s.Count; d++ {
		if s.tryBit(s.IStart + d) {
			return s.IStart + d, true
		}
		if s.tryBit(s.IStart - d) {
			return s.IStart - d, true
		}
	}
	return 0, false
}

func (s *SplitProgress) tryBit(idx int64) bool {
	if idx < 0 || idx >= s.Count {
		return false
	}
	return !s.bitSet(idx)
}

// issue picks the next available index, marks it in-flight to worker, and
// returns the sub-job. It returns found=false if the space is exhausted.
func (s *SplitProgress) issue(worker string) (*SubJob, bool) {
	idx, found := s.nextIndex()
	if !found {
		return nil, false
	}
	s.setBit(idx)
	sj := &SubJob{
		Subkey:   subkeyHex(idx),
		Index:    idx,
		Assignee: worker,
	}
	s.InFlight[sj.Subkey] = sj
	return sj, true
}

// release clears the progress bit for subkey and drops its in-flight
// entry, making the index reissuable.
func (s *SplitProgress) release(subkey string) bool {
	sj, ok := s.InFlight[subkey]
	if !ok {
		return false
	}
	s.clearBit(sj.Index)
	delete(s.InFlight, subkey)
	return true
}

// completeNone removes the in-flight entry for subkey but leaves its bit
// set: the offset was checked and came up empty.
func (s *SplitProgress) completeNone(subkey string) bool {
	if _, ok := s.InFlight[subkey]; !ok {
		return false
	}
	delete(s.InFlight, subkey)
	return true
}

// exhausted reports whether every index has been checked and nothing is
// still in flight: the parent has no further work to offer or await.
func (s *SplitProgress) exhausted() bool {
	if len(s.InFlight) > 0 {
		return false
	}
	_, found := s.nextIndex()
	return !found
}

// subkeyHex renders idx as 4 hex digits of a big-endian uint16, the wire
// form workers use to address a specific offset sub-job.
func subkeyHex(idx int64) string {
	return fmt.Sprintf("%04x", uint16(idx))
}
