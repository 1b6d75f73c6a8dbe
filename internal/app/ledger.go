package app

import (
	"fmt"

	"training-progress-service/internal/domain"
)

// PointLedger derives the point balance from earned badges and debited point
// rewards. It has no lock of its own; the owning Learner serializes access.
type PointLedger struct {
	catalog *domain.Catalog
	earned  *IDSet
	debits  map[string]int
}

func NewPointLedger(catalog *domain.Catalog, earned *IDSet) *PointLedger {
	return &PointLedger{catalog: catalog, earned: earned, debits: make(map[string]int)}
}

// TotalEarned sums the points of earned badges known to the catalog.
func (p *PointLedger) TotalEarned() int {
	total := 0
	for _, id := range p.earned.Get() {
		if b, ok := p.catalog.Badge(id); ok {
			total += b.Points
		}
	}
	return total
}

// Spent sums the costs of debited rewards.
func (p *PointLedger) Spent() int {
	spent := 0
	for _, cost := range p.debits {
		spent += cost
	}
	return spent
}

// Available never goes below zero, even for inconsistent persisted state.
func (p *PointLedger) Available() int {
	if avail := p.TotalEarned() - p.Spent(); avail > 0 {
		return avail
	}
	return 0
}

func (p *PointLedger) CanAfford(cost int) bool {
	return cost >= 0 && p.Available() >= cost
}

// Debit charges a reward once. A second debit for the same reward is a no-op.
func (p *PointLedger) Debit(rewardID string, cost int) error {
	if _, ok := p.debits[rewardID]; ok {
		return nil
	}
	if cost <= 0 {
		return fmt.Errorf("debit %s: non-positive cost %d", rewardID, cost)
	}
	if !p.CanAfford(cost) {
		return fmt.Errorf("debit %s: cost %d, available %d: %w", rewardID, cost, p.Available(), domain.ErrInsufficientPoints)
	}
	p.debits[rewardID] = cost
	return nil
}

// restore rebuilds debits from claimed reward ids. Historical claims are
// taken as-is without an affordability check.
func (p *PointLedger) restore(claimed []string) {
	for _, id := range claimed {
		r, ok := p.catalog.Reward(id)
		if !ok || r.Kind != domain.RewardPoint || r.PointCost <= 0 {
			continue
		}
		p.debits[id] = r.PointCost
	}
}

func (p *PointLedger) Snapshot() domain.Ledger {
	return domain.Ledger{
		TotalEarned: p.TotalEarned(),
		Spent:       p.Spent(),
		Available:   p.Available(),
	}
}

// costOf sums the point costs of the given claimed reward ids.
func (p *PointLedger) costOf(claimed []string) int {
	total := 0
	for _, id := range claimed {
		if r, ok := p.catalog.Reward(id); ok && r.Kind == domain.RewardPoint && r.PointCost > 0 {
			total += r.PointCost
		}
	}
	return total
}
