package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventStatusTransitions(t *testing.T) {
	cases := []struct {
		from    EventStatus
		to      EventStatus
		allowed bool
	}{
		{EventStatusDraft, EventStatusPublished, true},
		{EventStatusDraft, EventStatusCancelled, true},
		{EventStatusDraft, EventStatusCompleted, false},
		{EventStatusPublished, EventStatusCompleted, true},
		{EventStatusPublished, EventStatusCancelled, true},
		{EventStatusPublished, EventStatusDraft, false},
		{EventStatusCompleted, EventStatusPublished, false},
		{EventStatusCancelled, EventStatusPublished, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestEventPurchasable(t *testing.T) {
	now := time.Now()

	event := &Event{Date: now.Add(24 * time.Hour), Status: EventStatusPublished}
	assert.NoError(t, event.Purchasable(now))

	ended := &Event{Date: now.Add(-time.Hour), Status: EventStatusPublished}
	assert.ErrorIs(t, ended.Purchasable(now), ErrEventEnded)

	draft := &Event{Date: now.Add(24 * time.Hour), Status: EventStatusDraft}
	assert.ErrorIs(t, draft.Purchasable(now), ErrEventNotAvailable)

	// An ended event reports the ended error even when also unpublished
	endedDraft := &Event{Date: now.Add(-time.Hour), Status: EventStatusDraft}
	assert.ErrorIs(t, endedDraft.Purchasable(now), ErrEventEnded)
}
