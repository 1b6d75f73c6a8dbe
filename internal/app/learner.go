package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"training-progress-service/internal/domain"
)

// DefaultVideoFallback completes a video task when the player never reports
// that playback ended.
const DefaultVideoFallback = 30 * time.Second

// DefaultStoreTimeout bounds the store calls of one load or commit. Commits
// run under the learner lock, so this is also the longest a slow store can
// stall the learner.
const DefaultStoreTimeout = 2 * time.Second

const maxWarnings = 32

// LearnerOptions tunes a Learner. Zero values fall back to defaults.
type LearnerOptions struct {
	Clock         Clock
	Logger        *slog.Logger
	VideoFallback time.Duration
	StoreTimeout  time.Duration
}

func (o LearnerOptions) withDefaults() LearnerOptions {
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.VideoFallback <= 0 {
		o.VideoFallback = DefaultVideoFallback
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	return o
}

// Learner is the in-memory progression state of one learner against one
// catalog. Every mutation runs under mu and ends with a commit that persists
// changed keys and publishes events.
type Learner struct {
	id            string
	catalog       *domain.Catalog
	store         ProgressStore
	clock         Clock
	logger        *slog.Logger
	videoFallback time.Duration
	storeTimeout  time.Duration

	mu           sync.Mutex
	tasks        *IDSet
	modules      *IDSet
	badges       *IDSet
	certificates *IDSet
	claimed      *IDSet
	ledger       *PointLedger
	states       map[string]*taskState
	active       *Activation
	saved        map[string][]byte
	warnings     []string
	pending      []domain.Event
	subscribers  map[chan domain.Event]struct{}
}

// NewLearner builds an empty learner. Call Load to restore persisted progress.
// A nil store keeps progress in memory only.
func NewLearner(id string, catalog *domain.Catalog, store ProgressStore, opts LearnerOptions) *Learner {
	opts = opts.withDefaults()
	badges := NewIDSet()
	return &Learner{
		id:            id,
		catalog:       catalog,
		store:         store,
		clock:         opts.Clock,
		logger:        opts.Logger.With("learner", id, "catalog", catalog.ID),
		videoFallback: opts.VideoFallback,
		storeTimeout:  opts.StoreTimeout,
		tasks:         NewIDSet(),
		modules:       NewIDSet(),
		badges:        badges,
		certificates:  NewIDSet(),
		claimed:       NewIDSet(),
		ledger:        NewPointLedger(catalog, badges),
		states:        make(map[string]*taskState),
		saved:         make(map[string][]byte),
		subscribers:   make(map[chan domain.Event]struct{}),
	}
}

func (l *Learner) ID() string { return l.id }

func (l *Learner) CatalogID() string { return l.catalog.ID }

// Load restores persisted progress and recomputes derived state. Unreadable
// or malformed keys degrade to empty and are reported as warnings.
func (l *Learner) Load(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.readLocked(ctx)
	l.tasks.ReplaceAll(snap.tasks)
	l.badges.ReplaceAll(snap.badges)
	l.certificates.ReplaceAll(snap.certificates)
	l.claimed.ReplaceAll(snap.rewards)
	l.restoreAnswersLocked(snap.answers)
	l.ledger.restore(l.claimed.Get())
	l.recomputeAllLocked()
	l.checkSpentLocked(snap)

	// Restoring is not progress; subscribers only see changes from here on.
	l.pending = nil
	l.commitLocked(ctx)
}

// Refresh reconciles with the store after another writer may have changed
// it. Sets are merged (monotonic), then derived state is recomputed.
func (l *Learner) Refresh(ctx context.Context) domain.Overview {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.readLocked(ctx)
	for _, id := range snap.tasks {
		if l.tasks.Upsert(id) {
			l.emitLocked(domain.EventTaskCompleted, id)
		}
	}
	for _, id := range snap.badges {
		if l.badges.Upsert(id) {
			l.emitLocked(domain.EventBadgeEarned, id)
		}
	}
	for _, id := range snap.certificates {
		if l.certificates.Upsert(id) {
			l.emitLocked(domain.EventCertificateEarned, id)
		}
	}
	for _, id := range snap.rewards {
		if l.claimed.Upsert(id) {
			l.emitLocked(domain.EventRewardClaimed, id)
		}
	}
	l.restoreAnswersLocked(snap.answers)
	l.ledger.restore(l.claimed.Get())
	l.recomputeAllLocked()
	l.checkSpentLocked(snap)
	l.commitLocked(ctx)
	return l.overviewLocked()
}

// Subscribe returns a channel receiving progression events. The caller must
// invoke cancel to release it.
func (l *Learner) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subscribers[ch]; ok {
			delete(l.subscribers, ch)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

// IsIdle reports whether nobody is watching the learner.
func (l *Learner) IsIdle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subscribers) == 0 && l.active == nil
}

// Warnings returns the degradations recorded since the learner was loaded.
func (l *Learner) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warnings...)
}

type snapshot struct {
	tasks        []string
	badges       []string
	certificates []string
	rewards      []string
	spent        int
	hasSpent     bool
	answers      map[string]map[string]int
}

func (l *Learner) readLocked(ctx context.Context) snapshot {
	var snap snapshot
	if l.store == nil {
		return snap
	}
	ctx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()
	snap.tasks, _ = readKey[[]string](ctx, l, KeyCompletedTasks)
	snap.badges, _ = readKey[[]string](ctx, l, KeyEarnedBadges)
	snap.certificates, _ = readKey[[]string](ctx, l, KeyEarnedCertificates)
	snap.rewards, _ = readKey[[]string](ctx, l, KeyClaimedRewards)
	snap.answers, _ = readKey[map[string]map[string]int](ctx, l, KeyQuizAnswers)
	snap.spent, snap.hasSpent = readKey[int](ctx, l, KeySpentPoints)
	return snap
}

// readKey loads and decodes one key. Failures degrade to the zero value.
func readKey[T any](ctx context.Context, l *Learner, key string) (T, bool) {
	var v T
	raw, err := l.store.Load(ctx, l.id, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return v, false
	}
	if err != nil {
		l.warnLocked(fmt.Errorf("load %s: %w: %w", key, domain.ErrStorageUnavailable, err))
		return v, false
	}
	var decoded T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		l.warnLocked(fmt.Errorf("load %s: %w: %w", key, domain.ErrMalformedPersistedState, err))
		return v, false
	}
	l.saved[key] = raw
	return decoded, true
}

func (l *Learner) restoreAnswersLocked(answers map[string]map[string]int) {
	for taskID, byQuestion := range answers {
		task, ok := l.catalog.Task(taskID)
		if !ok || task.Quiz == nil {
			continue
		}
		st := l.state(taskID)
		for key, choice := range byQuestion {
			q, err := strconv.Atoi(key)
			if err != nil || q < 0 || q >= len(task.Quiz.Questions) {
				continue
			}
			if choice < 0 || choice >= len(task.Quiz.Questions[q].Options) {
				continue
			}
			if _, done := st.answers[q]; done {
				continue
			}
			if st.answers == nil {
				st.answers = make(map[int]int)
			}
			st.answers[q] = choice
		}
	}
}

func (l *Learner) checkSpentLocked(snap snapshot) {
	if snap.hasSpent && snap.spent != l.ledger.Spent() {
		l.warnLocked(fmt.Errorf("%w: stored spentPoints %d, claimed rewards cost %d",
			domain.ErrMalformedPersistedState, snap.spent, l.ledger.Spent()))
	}
	if l.ledger.Spent() > l.ledger.TotalEarned() {
		l.warnLocked(fmt.Errorf("%w: spent %d exceeds earned %d",
			domain.ErrMalformedPersistedState, l.ledger.Spent(), l.ledger.TotalEarned()))
	}
}

func (l *Learner) encodeLocked() map[string][]byte {
	out := make(map[string][]byte, len(persistedKeys))
	put := func(key string, v any) {
		raw, err := json.Marshal(v)
		if err != nil {
			l.logger.Error("encode progress", "key", key, "err", err)
			return
		}
		out[key] = raw
	}
	put(KeyCompletedTasks, l.tasks.Get())
	put(KeyEarnedBadges, l.badges.Get())
	put(KeyEarnedCertificates, l.certificates.Get())
	put(KeyClaimedRewards, l.claimed.Get())
	put(KeySpentPoints, l.ledger.Spent())

	answers := make(map[string]map[string]int)
	for taskID, st := range l.states {
		if len(st.answers) == 0 {
			continue
		}
		byQuestion := make(map[string]int, len(st.answers))
		for q, choice := range st.answers {
			byQuestion[strconv.Itoa(q)] = choice
		}
		answers[taskID] = byQuestion
	}
	put(KeyQuizAnswers, answers)
	return out
}

func (l *Learner) warnLocked(err error) {
	l.logger.Warn("progress degraded", "err", err)
	if len(l.warnings) >= maxWarnings {
		l.warnings = l.warnings[1:]
	}
	l.warnings = append(l.warnings, err.Error())
}

func (l *Learner) emitLocked(typ domain.EventType, subjectID string) {
	l.pending = append(l.pending, domain.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		LearnerID: l.id,
		SubjectID: subjectID,
		At:        l.clock.Now(),
	})
	l.logger.Info("progress", "event", typ, "subject", subjectID)
}

func (l *Learner) broadcastLocked() {
	for _, ev := range l.pending {
		for ch := range l.subscribers {
			select {
			case ch <- ev:
			default:
				// Slow subscriber: drop its oldest event rather than block the learner.
				select {
				case <-ch:
				default:
				}
				ch <- ev
			}
		}
	}
	l.pending = nil
}

func (l *Learner) state(taskID string) *taskState {
	st, ok := l.states[taskID]
	if !ok {
		st = &taskState{}
		l.states[taskID] = st
	}
	return st
}

// GetModuleProgress reports task completion inside a module.
func (l *Learner) GetModuleProgress(moduleID string) (domain.ModuleProgress, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.catalog.Module(moduleID)
	if !ok {
		return domain.ModuleProgress{}, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, moduleID)
	}
	return l.moduleProgressLocked(m), nil
}

// GetBadgeStatus reports whether a badge is earned.
func (l *Learner) GetBadgeStatus(badgeID string) (domain.BadgeStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.catalog.Badge(badgeID)
	if !ok {
		return domain.BadgeStatus{}, fmt.Errorf("%w: %s", domain.ErrBadgeNotFound, badgeID)
	}
	return l.badgeStatusLocked(b), nil
}

// GetCertificateStatus reports whether a certificate is earned.
func (l *Learner) GetCertificateStatus(certificateID string) (domain.CertificateStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.catalog.Certificate(certificateID)
	if !ok {
		return domain.CertificateStatus{}, fmt.Errorf("%w: %s", domain.ErrCertificateNotFound, certificateID)
	}
	return l.certificateStatusLocked(c), nil
}

// GetAvailablePoints returns earned badge points minus claimed point rewards.
func (l *Learner) GetAvailablePoints() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ledger.Available()
}

// Ledger returns the point balance breakdown.
func (l *Learner) Ledger() domain.Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ledger.Snapshot()
}

// Overview returns every derived status at once.
func (l *Learner) Overview() domain.Overview {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overviewLocked()
}

func (l *Learner) overviewLocked() domain.Overview {
	ov := domain.Overview{
		LearnerID:    l.id,
		CatalogID:    l.catalog.ID,
		Modules:      make([]domain.ModuleProgress, 0, len(l.catalog.Modules)),
		Badges:       make([]domain.BadgeStatus, 0, len(l.catalog.Badges)),
		Certificates: make([]domain.CertificateStatus, 0, len(l.catalog.Certificates)),
		Rewards:      l.rewardStatusesLocked(),
		Ledger:       l.ledger.Snapshot(),
		Warnings:     append([]string(nil), l.warnings...),
	}
	for _, m := range l.catalog.Modules {
		ov.Modules = append(ov.Modules, l.moduleProgressLocked(m))
	}
	for _, b := range l.catalog.Badges {
		ov.Badges = append(ov.Badges, l.badgeStatusLocked(b))
	}
	for _, c := range l.catalog.Certificates {
		ov.Certificates = append(ov.Certificates, l.certificateStatusLocked(c))
	}
	return ov
}

func (l *Learner) moduleProgressLocked(m domain.Module) domain.ModuleProgress {
	done := 0
	for _, taskID := range m.TaskIDs {
		if l.tasks.Has(taskID) {
			done++
		}
	}
	return domain.ModuleProgress{
		ModuleID:       m.ID,
		BadgeID:        m.BadgeID,
		Completed:      l.modules.Has(m.ID),
		CompletedTasks: done,
		TotalTasks:     len(m.TaskIDs),
	}
}

func (l *Learner) badgeStatusLocked(b domain.Badge) domain.BadgeStatus {
	modules := l.catalog.ModulesOfBadge(b.ID)
	done := 0
	for _, m := range modules {
		if l.modules.Has(m.ID) {
			done++
		}
	}
	return domain.BadgeStatus{
		BadgeID:          b.ID,
		Earned:           l.badges.Has(b.ID),
		Points:           b.Points,
		CompletedModules: done,
		TotalModules:     len(modules),
	}
}

func (l *Learner) certificateStatusLocked(c domain.Certificate) domain.CertificateStatus {
	done := 0
	for _, badgeID := range c.RequiredBadgeIDs {
		if l.badges.Has(badgeID) {
			done++
		}
	}
	return domain.CertificateStatus{
		CertificateID: c.ID,
		Earned:        l.certificates.Has(c.ID),
		EarnedBadges:  done,
		TotalBadges:   len(c.RequiredBadgeIDs),
	}
}
