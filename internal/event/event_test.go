package event

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		want string
		typ  Type
	}{
		{want: "ScanStarted", typ: ScanStarted},
		{want: "ScanComplete", typ: ScanComplete},
		{want: "EntryStarted", typ: EntryStarted},
		{want: "EntryPacked", typ: EntryPacked},
		{want: "EntryExtracted", typ: EntryExtracted},
		{want: "EntryFailed", typ: EntryFailed},
		{want: "EntrySkipped", typ: EntrySkipped},
		{want: "ChecksumMismatch", typ: ChecksumMismatch},
		{want: "DirCreated", typ: DirCreated},
		{want: "SymlinkCreated", typ: SymlinkCreated},
		{want: "VerifyStarted", typ: VerifyStarted},
		{want: "VerifyOK", typ: VerifyOK},
		{want: "VerifyFailed", typ: VerifyFailed},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestTypeStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Type(999).String())
	assert.Equal(t, "Unknown", Type(0).String())
}

func TestEventZeroValue(t *testing.T) {
	var e Event
	assert.Equal(t, Type(0), e.Type)
	assert.True(t, e.Timestamp.IsZero())
	assert.Empty(t, e.Path)
	assert.Zero(t, e.Size)
	assert.Zero(t, e.Stored)
	require.NoError(t, e.Error)
}

func TestSinkEmitStampsTime(t *testing.T) {
	ch := make(chan Event, 1)
	before := time.Now()
	Sink(ch).Emit(Event{Type: EntryFailed, Path: "a/b", Error: errors.New("boom")})

	ev := <-ch
	assert.Equal(t, EntryFailed, ev.Type)
	assert.Equal(t, "a/b", ev.Path)
	assert.False(t, ev.Timestamp.Before(before))
	assert.EqualError(t, ev.Error, "boom")
}

func TestNilSinkDiscards(t *testing.T) {
	var s Sink
	assert.NotPanics(t, func() { s.Emit(Event{Type: EntryPacked}) })
}
