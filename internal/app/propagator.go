package app

import "training-progress-service/internal/domain"

// propagateLocked cascades a task completion upward: module, then its badge,
// then every certificate. Each step only ever adds to the earned sets.
func (l *Learner) propagateLocked(moduleID string) {
	m, ok := l.catalog.Module(moduleID)
	if !ok {
		return
	}
	if !l.recomputeModuleLocked(m) {
		return
	}
	if b, ok := l.catalog.Badge(m.BadgeID); ok && l.recomputeBadgeLocked(b) {
		l.recomputeCertificatesLocked()
	}
}

// recomputeModuleLocked reports whether the module became complete now.
func (l *Learner) recomputeModuleLocked(m domain.Module) bool {
	if l.modules.Has(m.ID) || len(m.TaskIDs) == 0 {
		return false
	}
	for _, taskID := range m.TaskIDs {
		if !l.tasks.Has(taskID) {
			return false
		}
	}
	l.modules.Upsert(m.ID)
	l.emitLocked(domain.EventModuleCompleted, m.ID)
	return true
}

// recomputeBadgeLocked reports whether the badge was earned now. A badge
// covers the modules that name it; a badge no module names is never earned.
func (l *Learner) recomputeBadgeLocked(b domain.Badge) bool {
	if l.badges.Has(b.ID) {
		return false
	}
	modules := l.catalog.ModulesOfBadge(b.ID)
	if len(modules) == 0 {
		return false
	}
	for _, m := range modules {
		if !l.modules.Has(m.ID) {
			return false
		}
	}
	l.badges.Upsert(b.ID)
	l.emitLocked(domain.EventBadgeEarned, b.ID)
	return true
}

func (l *Learner) recomputeCertificatesLocked() {
	for _, c := range l.catalog.Certificates {
		if l.certificates.Has(c.ID) || len(c.RequiredBadgeIDs) == 0 {
			continue
		}
		earned := true
		for _, badgeID := range c.RequiredBadgeIDs {
			if !l.badges.Has(badgeID) {
				earned = false
				break
			}
		}
		if earned {
			l.certificates.Upsert(c.ID)
			l.emitLocked(domain.EventCertificateEarned, c.ID)
		}
	}
}

// recomputeAllLocked derives modules, badges and certificates from the
// completed task set.
func (l *Learner) recomputeAllLocked() {
	for _, m := range l.catalog.Modules {
		l.recomputeModuleLocked(m)
	}
	for _, b := range l.catalog.Badges {
		l.recomputeBadgeLocked(b)
	}
	l.recomputeCertificatesLocked()
}
