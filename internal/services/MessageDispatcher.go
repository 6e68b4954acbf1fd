package services

import (
	"context"
	"parasited/internal/models"
)

// Dispatch routes one sync-channel request to the authority. The request is
// validated first, so malformed input never reaches the queue.
func Dispatch(ctx context.Context, authority StateAuthorityInterface, req models.Request) (models.Snapshot, error) {
	if err := req.Validate(); err != nil {
		return models.Snapshot{}, err
	}
	switch req.Type {
	case models.MessageViewRecorded:
		return authority.RecordView(ctx, req.ItemID, req.Seconds)
	case models.MessageLockdownEndured:
		return authority.EnduredLockdown(ctx)
	case models.MessageQuickExitUnlock:
		return authority.UnlockNamed(ctx, models.AchievementQuickEscape)
	case models.MessageLateNightUnlock:
		return authority.UnlockNamed(ctx, models.AchievementZombie)
	case models.MessageElapsedSeconds:
		return authority.RecordElapsedSeconds(ctx, req.Seconds)
	default:
		return authority.GetSnapshot(ctx)
	}
}
