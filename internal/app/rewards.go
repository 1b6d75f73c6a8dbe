package app

import (
	"context"
	"fmt"

	"training-progress-service/internal/domain"
)

// ClaimReward claims a badge reward once its badge is earned, or a point
// reward when the balance covers its cost. Claiming twice is a no-op.
func (l *Learner) ClaimReward(ctx context.Context, rewardID string) (domain.RewardStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.catalog.Reward(rewardID)
	if !ok {
		return domain.RewardStatus{}, fmt.Errorf("%w: %s", domain.ErrRewardNotFound, rewardID)
	}
	if l.claimed.Has(r.ID) {
		return l.rewardStatusLocked(r), nil
	}

	switch r.Kind {
	case domain.RewardBadge:
		if !l.badges.Has(r.RequiredBadgeID) {
			return l.rewardStatusLocked(r), fmt.Errorf("claim %s: badge %s: %w", r.ID, r.RequiredBadgeID, domain.ErrBadgeNotEarned)
		}
	case domain.RewardPoint:
		if err := l.ledger.Debit(r.ID, r.PointCost); err != nil {
			return l.rewardStatusLocked(r), fmt.Errorf("claim %s: %w", r.ID, err)
		}
	default:
		return l.rewardStatusLocked(r), fmt.Errorf("claim %s: unknown reward kind %q", r.ID, r.Kind)
	}

	l.claimed.Upsert(r.ID)
	l.emitLocked(domain.EventRewardClaimed, r.ID)
	l.commitLocked(ctx)
	return l.rewardStatusLocked(r), nil
}

// ListRewards returns the claim state of every catalog reward.
func (l *Learner) ListRewards() []domain.RewardStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rewardStatusesLocked()
}

func (l *Learner) rewardStatusesLocked() []domain.RewardStatus {
	out := make([]domain.RewardStatus, 0, len(l.catalog.Rewards))
	for _, r := range l.catalog.Rewards {
		out = append(out, l.rewardStatusLocked(r))
	}
	return out
}

func (l *Learner) rewardStatusLocked(r domain.Reward) domain.RewardStatus {
	st := domain.RewardStatus{RewardID: r.ID, Kind: r.Kind, PointCost: r.PointCost}
	if l.claimed.Has(r.ID) {
		st.Claimed = true
		return st
	}
	switch r.Kind {
	case domain.RewardBadge:
		if l.badges.Has(r.RequiredBadgeID) {
			st.Claimable = true
		} else {
			st.Reason = fmt.Sprintf("earn badge %s first", r.RequiredBadgeID)
		}
	case domain.RewardPoint:
		if r.PointCost > 0 && l.ledger.CanAfford(r.PointCost) {
			st.Claimable = true
		} else {
			st.Reason = fmt.Sprintf("needs %d points, %d available", r.PointCost, l.ledger.Available())
		}
	}
	return st
}
