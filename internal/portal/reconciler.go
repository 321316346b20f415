package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/planea/portal/internal/profile"
)

var (
	// ErrProfileWrite wraps a failed completion write.
	ErrProfileWrite = errors.New("profile write failed")
	// ErrProfileRead wraps a failed profile load after sign-in.
	ErrProfileRead = errors.New("profile read failed")
)

// Outcome says what Record did with a completion.
type Outcome int

const (
	OutcomeRecorded Outcome = iota + 1
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Reconciler records topic completions for one session, deferring them across the
// login boundary when nobody is signed in yet.
type Reconciler struct {
	profiles  profile.Store
	pending   PendingStore
	sessionID string
}

func NewReconciler(profiles profile.Store, pending PendingStore, sessionID string) *Reconciler {
	return &Reconciler{profiles: profiles, pending: pending, sessionID: sessionID}
}

// Record merges topicID into uid's completed topics. With an empty uid the topic
// becomes the session's single pending completion instead, replacing any earlier one.
func (r *Reconciler) Record(ctx context.Context, uid, topicID string) (Outcome, error) {
	if uid == "" {
		if err := r.pending.Set(ctx, r.sessionID, topicID); err != nil {
			return 0, fmt.Errorf("deferring completion: %w", err)
		}
		return OutcomeDeferred, nil
	}

	if err := r.profiles.MergeCompletedTopic(ctx, uid, topicID); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProfileWrite, err)
	}
	return OutcomeRecorded, nil
}

// Resolve consumes the pending completion, if any, and records it for uid. It returns
// the consumed topic id, or "" when nothing was pending. The pending value is cleared
// even when the write fails.
func (r *Reconciler) Resolve(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return "", errors.New("resolve requires a signed-in uid")
	}

	topicID, ok, err := r.pending.Take(ctx, r.sessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	if _, err := r.Record(ctx, uid, topicID); err != nil {
		return topicID, err
	}
	return topicID, nil
}

// Pending returns the session's deferred completion without consuming it.
func (r *Reconciler) Pending(ctx context.Context) (string, bool, error) {
	return r.pending.Peek(ctx, r.sessionID)
}

// Discard drops any pending completion.
func (r *Reconciler) Discard(ctx context.Context) error {
	return r.pending.Delete(ctx, r.sessionID)
}
