package presence

import "context"

// Mirror publishes online/offline transitions outside the process.
// It is write-only from the hub's point of view.
type Mirror interface {
	SetOnline(ctx context.Context, userID int64) error
	SetOffline(ctx context.Context, userID int64) error
	// Refresh extends the status TTL of users that are still online.
	Refresh(ctx context.Context, userIDs []int64) error
}

// NopMirror discards every update.
type NopMirror struct{}

func (NopMirror) SetOnline(context.Context, int64) error  { return nil }
func (NopMirror) SetOffline(context.Context, int64) error { return nil }
func (NopMirror) Refresh(context.Context, []int64) error  { return nil }
