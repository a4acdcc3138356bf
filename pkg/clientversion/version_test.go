// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package clientversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind string
		wantSegs []string
		wantErr  bool
	}{
		{"simple", "miiner-2.1.1", "miiner", []string{"2", "1", "1"}, false},
		{"prerelease suffix", "miiner-2.1.1-alpha", "miiner", []string{"2", "1", "1", "alpha"}, false},
		{"friendbot", "friendbot-1.0.0", "friendbot", []string{"1", "0", "0"}, false},
		{"no dash", "miiner", "", nil, true},
		{"empty version", "miiner-", "", nil, true},
		{"empty kind", "-1.0.0", "", nil, true},
		{"empty segment", "miiner-1..0", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, v.Kind)
			assert.Equal(t, tt.wantSegs, v.Segments)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"equal", "miiner-2.1.1", "miiner-2.1.1", 0},
		{"a less than b, patch", "miiner-2.1.0", "miiner-2.1.1", -1},
		{"a greater than b, minor", "miiner-2.2.0", "miiner-2.1.9", 1},
		{"shorter arity treated as zero-padded", "miiner-2.1", "miiner-2.1.0", 0},
		{"shorter arity lower", "miiner-2.1", "miiner-2.1.1", -1},
		{"missing trailing segment pads as zero, sorts below a word", "miiner-2.1.1", "miiner-2.1.1-alpha", -1},
		{"longer arity numeric", "miiner-2.1.1.5", "miiner-2.1.1.10", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.a)
			require.NoError(t, err)
			b, err := Parse(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Compare(a, b))
		})
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name      string
		client    string
		min       string
		satisfies bool
		wantErr   bool
	}{
		{"exact match", "miiner-2.1.1-alpha", "miiner-2.1.1-alpha", true, false},
		{"newer client", "miiner-2.2.0", "miiner-2.1.1-alpha", true, false},
		{"older client rejected", "miiner-2.0.0", "miiner-2.1.1-alpha", false, false},
		{"wrong kind rejected", "friendbot-5.0.0", "miiner-2.1.1-alpha", false, true},
		{"malformed client", "not-a-version-at-all-", "miiner-2.1.1-alpha", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Satisfies(tt.client, tt.min)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.satisfies, ok)
		})
	}
}
