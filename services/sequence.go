package services

import (
	"context"
	"fmt"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
)

// SequenceAllocator finds the highest invitation number issued for an event.
// It does not lock: CreationService holds the event's key lock around
// allocation and creation so batches of one event never overlap.
type SequenceAllocator struct {
	events repositories.IEventRepository
}

// NewSequenceAllocator builds the allocator of invitation numbers over events.
func NewSequenceAllocator(events repositories.IEventRepository) *SequenceAllocator {
	return &SequenceAllocator{events: events}
}

// MaxIndex returns max(N) over the event's "invitation#INV<N>" keys, or 0.
// Keys whose suffix is not all digits are ignored.
func (a *SequenceAllocator) MaxIndex(ctx context.Context, eventID string) (int, error) {
	ids, err := a.events.InvitationIDs(ctx, eventID)
	if err != nil {
		configslog.Log.Error("Invitation sequence could not be read", zap.String("eventId", eventID), zap.Error(err))
		return 0, fmt.Errorf("%w: %s: %w", ErrSequenceRead, eventID, err)
	}
	maxIndex := 0
	for _, id := range ids {
		if n, ok := models.ParseInvitationIndex(id); ok && n > maxIndex {
			maxIndex = n
		}
	}
	configslog.SLog.Debugf("Max invitation index for %s is %d", eventID, maxIndex)
	return maxIndex, nil
}

// Allocate returns n consecutive ids following start.
func Allocate(start, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = models.InvitationIDFor(start + i + 1)
	}
	return ids
}
