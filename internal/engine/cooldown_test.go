package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/taskbridge/internal/state"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

func TestShouldSkip(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	window := 5 * time.Second

	tests := []struct {
		name    string
		marker  state.Marker
		source  types.Source
		now     time.Time
		want    bool
	}{
		{
			name:   "no previous pass",
			marker: state.Marker{},
			source: types.SourceNotes,
			now:    base,
			want:   false,
		},
		{
			name:   "opposite origin inside window is an echo",
			marker: state.Marker{LastPassTime: base, LastPassOrigin: types.SourceTasks},
			source: types.SourceNotes,
			now:    base.Add(2 * time.Second),
			want:   true,
		},
		{
			name:   "opposite origin at window boundary runs",
			marker: state.Marker{LastPassTime: base, LastPassOrigin: types.SourceTasks},
			source: types.SourceNotes,
			now:    base.Add(5 * time.Second),
			want:   false,
		},
		{
			name:   "opposite origin after window runs",
			marker: state.Marker{LastPassTime: base, LastPassOrigin: types.SourceTasks},
			source: types.SourceNotes,
			now:    base.Add(6 * time.Second),
			want:   false,
		},
		{
			name:   "same origin inside window runs",
			marker: state.Marker{LastPassTime: base, LastPassOrigin: types.SourceNotes},
			source: types.SourceNotes,
			now:    base.Add(time.Second),
			want:   false,
		},
		{
			name:   "tasks pass after recent notes pass is an echo",
			marker: state.Marker{LastPassTime: base, LastPassOrigin: types.SourceNotes},
			source: types.SourceTasks,
			now:    base.Add(2 * time.Second),
			want:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldSkip(tt.marker, tt.source, tt.now, window)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldSkipConfigurableWindow(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	m := state.Marker{LastPassTime: base, LastPassOrigin: types.SourceTasks}

	assert.True(t, ShouldSkip(m, types.SourceNotes, base.Add(20*time.Second), 30*time.Second))
	assert.False(t, ShouldSkip(m, types.SourceNotes, base.Add(20*time.Second), 5*time.Second))
}
