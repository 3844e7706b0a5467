package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicOpState_String(t *testing.T) {
	tests := []struct {
		state OpState
		want  string
	}{
		{ClosedState, "Closed"},
		{ClosingState, "Closing"},
		{OpeningState, "Opening"},
		{OpenedState, "Opened"},
		{OpState(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			st := &AtomicOpState{}
			st.Set(tt.state)
			assert.Equal(t, tt.want, st.String())
		})
	}
}

func TestAtomicOpState_Lifecycle(t *testing.T) {
	assert := assert.New(t)

	st := &AtomicOpState{}
	assert.True(st.IsClosed())

	assert.False(st.ToOpened(), "Closed can not jump to Opened")
	assert.True(st.ToOpening())
	assert.False(st.ToOpening())
	assert.True(st.ToOpened())
	assert.True(st.ToOpened(), "already opened")
	assert.False(st.ToClosed(), "Opened must pass through Closing")
	assert.True(st.ToClosing())
	assert.True(st.ToClosed())
	assert.True(st.IsClosed())
}

func TestAtomicOpState_AbortOpening(t *testing.T) {
	assert := assert.New(t)

	st := &AtomicOpState{}
	st.ToOpening()
	assert.True(st.ToClosing())
	assert.Equal(ClosingState, st.Get())
}
