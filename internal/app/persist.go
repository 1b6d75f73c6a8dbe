package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"training-progress-service/internal/domain"
)

// setKeys hold id sets that only ever grow. Saves merge them with what the
// store already has so a concurrent writer never loses progress.
var setKeys = map[string]bool{
	KeyCompletedTasks:     true,
	KeyEarnedBadges:       true,
	KeyEarnedCertificates: true,
	KeyClaimedRewards:     true,
}

// commitLocked persists every key whose payload changed, then publishes
// pending events. Save failures leave the in-memory state authoritative.
func (l *Learner) commitLocked(ctx context.Context) {
	if l.store != nil {
		l.persistLocked(ctx)
	}
	l.broadcastLocked()
}

func (l *Learner) persistLocked(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()

	encoded := l.encodeLocked()
	for _, key := range persistedKeys {
		payload, ok := encoded[key]
		if !ok || bytes.Equal(l.saved[key], payload) {
			continue
		}
		merged, err := l.mergeStoredLocked(ctx, key, payload)
		if err == nil {
			err = l.store.Save(ctx, l.id, key, merged)
		}
		if err != nil {
			l.warnLocked(fmt.Errorf("save %s: %w: %w", key, domain.ErrStorageUnavailable, err))
			continue
		}
		l.saved[key] = payload
	}
}

// mergeStoredLocked folds the stored value of key into payload. A stored
// value that does not decode is replaced.
func (l *Learner) mergeStoredLocked(ctx context.Context, key string, payload []byte) ([]byte, error) {
	switch {
	case setKeys[key]:
		stored, err := l.loadStoredLocked(ctx, key)
		if err != nil || stored == nil {
			return payload, err
		}
		var mine, theirs []string
		if err := json.Unmarshal(payload, &mine); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stored, &theirs); err != nil {
			l.logger.Warn("replacing malformed stored progress", "key", key, "err", err)
			return payload, nil
		}
		return json.Marshal(unionIDs(mine, theirs))
	case key == KeySpentPoints:
		// claimedRewards is written first, so the stored set already holds
		// every claim of this and any other writer.
		stored, err := l.loadStoredLocked(ctx, KeyClaimedRewards)
		if err != nil || stored == nil {
			return payload, err
		}
		var claimed []string
		if err := json.Unmarshal(stored, &claimed); err != nil {
			return payload, nil
		}
		return json.Marshal(l.ledger.costOf(unionIDs(claimed, l.claimed.Get())))
	case key == KeyQuizAnswers:
		stored, err := l.loadStoredLocked(ctx, key)
		if err != nil || stored == nil {
			return payload, err
		}
		var mine, theirs map[string]map[string]int
		if err := json.Unmarshal(payload, &mine); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stored, &theirs); err != nil {
			l.logger.Warn("replacing malformed stored progress", "key", key, "err", err)
			return payload, nil
		}
		return json.Marshal(mergeAnswers(theirs, mine))
	default:
		return payload, nil
	}
}

// loadStoredLocked returns nil without error when the key is absent.
func (l *Learner) loadStoredLocked(ctx context.Context, key string) ([]byte, error) {
	raw, err := l.store.Load(ctx, l.id, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read before write: %w", err)
	}
	return raw, nil
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ids := range [][]string{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// mergeAnswers keeps the first recorded answer per question; stored answers
// were recorded first.
func mergeAnswers(stored, mine map[string]map[string]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(stored)+len(mine))
	for _, src := range []map[string]map[string]int{stored, mine} {
		for taskID, byQuestion := range src {
			dst, ok := out[taskID]
			if !ok {
				dst = make(map[string]int, len(byQuestion))
				out[taskID] = dst
			}
			for q, choice := range byQuestion {
				if _, done := dst[q]; !done {
					dst[q] = choice
				}
			}
		}
	}
	return out
}
