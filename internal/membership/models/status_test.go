package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lted/pkg/domain-errors"
)

func TestNext_LegalTransitions(t *testing.T) {
	tests := []struct {
		from  Status
		event Event
		want  Status
	}{
		{StatusNone, EventSubmit, StatusSubmitted},
		{StatusRejected, EventSubmit, StatusSubmitted},
		{StatusPetitionedTie, EventSubmit, StatusSubmitted},
		{StatusSubmitted, EventAccept, StatusActive},
		{StatusSubmitted, EventReject, StatusRejected},
		{StatusActive, EventRemove, StatusRemoved},
		{StatusActive, EventResign, StatusRemoved},
		{StatusActive, EventPetitionLost, StatusPetitionedLost},
		{StatusActive, EventPetitionTie, StatusPetitionedTie},
		{StatusNone, EventPetitionWon, StatusActive},
		{StatusRemoved, EventReactivate, StatusActive},
	}
	for _, tt := range tests {
		t.Run(string(tt.event)+" from "+displayStatus(tt.from), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_IllegalTransitionsAreConflicts(t *testing.T) {
	tests := []struct {
		from  Status
		event Event
	}{
		{StatusActive, EventSubmit},
		{StatusSubmitted, EventSubmit},
		{StatusActive, EventAccept},
		{StatusRejected, EventAccept},
		{StatusActive, EventReject},
		{StatusSubmitted, EventRemove},
		{StatusRemoved, EventRemove},
		{StatusActive, EventReactivate},
	}
	for _, tt := range tests {
		t.Run(string(tt.event)+" from "+displayStatus(tt.from), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
			assert.Equal(t, tt.from, got)
			assert.False(t, CanApply(tt.from, tt.event))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusSubmitted.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	for _, s := range []Status{StatusRejected, StatusRemoved, StatusPetitionedLost, StatusPetitionedTie} {
		assert.True(t, s.IsTerminal(), s)
	}
}

func TestPetitionOutcome_Event(t *testing.T) {
	ev, ok := OutcomeUnopposed.Event()
	assert.True(t, ok)
	assert.Equal(t, EventPetitionWon, ev)

	ev, ok = OutcomeLostPrimary.Event()
	assert.True(t, ok)
	assert.Equal(t, EventPetitionLost, ev)

	_, ok = PetitionOutcome("WITHDRAWN").Event()
	assert.False(t, ok)
}
