package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"training-progress-service/internal/domain"
)

var validate = validator.New()

// ValidationError lists every integrity problem found in a catalog.
type ValidationError struct {
	CatalogID string
	Problems  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog %q is invalid: %s", e.CatalogID, strings.Join(e.Problems, "; "))
}

// Validate checks struct rules and cross references of an authored catalog.
// Problems are data-integrity errors to fix at authoring time; nothing is
// inferred or repaired.
func Validate(c *domain.Catalog) error {
	v := &checker{}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				v.addf("%s: failed %q", fe.Namespace(), fe.Tag())
			}
		} else {
			v.addf("%v", err)
		}
	}

	tasks := uniqueIDs(v, "task", len(c.Tasks), func(i int) string { return c.Tasks[i].ID })
	modules := uniqueIDs(v, "module", len(c.Modules), func(i int) string { return c.Modules[i].ID })
	badges := uniqueIDs(v, "badge", len(c.Badges), func(i int) string { return c.Badges[i].ID })
	uniqueIDs(v, "certificate", len(c.Certificates), func(i int) string { return c.Certificates[i].ID })
	uniqueIDs(v, "reward", len(c.Rewards), func(i int) string { return c.Rewards[i].ID })

	for _, t := range c.Tasks {
		checkTaskConfig(v, t)
		if _, ok := modules[t.ModuleID]; !ok && t.ModuleID != "" {
			v.addf("task %s: unknown module %s", t.ID, t.ModuleID)
		}
	}

	membersOf := make(map[string][]string)
	for _, m := range c.Modules {
		if _, ok := badges[m.BadgeID]; !ok && m.BadgeID != "" {
			v.addf("module %s: unknown badge %s", m.ID, m.BadgeID)
		}
		membersOf[m.BadgeID] = append(membersOf[m.BadgeID], m.ID)
		for _, taskID := range m.TaskIDs {
			i, ok := tasks[taskID]
			if !ok {
				v.addf("module %s: unknown task %s", m.ID, taskID)
				continue
			}
			if owner := c.Tasks[i].ModuleID; owner != m.ID {
				v.addf("module %s: task %s belongs to module %s", m.ID, taskID, owner)
			}
		}
	}
	for _, t := range c.Tasks {
		if i, ok := modules[t.ModuleID]; ok && !contains(c.Modules[i].TaskIDs, t.ID) {
			v.addf("task %s: not listed in module %s", t.ID, t.ModuleID)
		}
	}

	for _, b := range c.Badges {
		members := membersOf[b.ID]
		if len(members) == 0 {
			v.addf("badge %s: no modules reference it", b.ID)
			continue
		}
		if len(b.RequiredModuleIDs) > 0 && !sameSet(members, b.RequiredModuleIDs) {
			v.addf("badge %s: requiredModuleIds %v diverge from modules with this badgeId %v",
				b.ID, sorted(b.RequiredModuleIDs), sorted(members))
		}
	}

	for _, cert := range c.Certificates {
		for _, badgeID := range cert.RequiredBadgeIDs {
			if _, ok := badges[badgeID]; !ok {
				v.addf("certificate %s: unknown badge %s", cert.ID, badgeID)
			}
		}
	}

	for _, r := range c.Rewards {
		switch r.Kind {
		case domain.RewardBadge:
			if _, ok := badges[r.RequiredBadgeID]; !ok {
				v.addf("reward %s: unknown badge %q", r.ID, r.RequiredBadgeID)
			}
			if r.PointCost != 0 {
				v.addf("reward %s: badge rewards carry no point cost", r.ID)
			}
		case domain.RewardPoint:
			if r.PointCost <= 0 {
				v.addf("reward %s: point cost must be positive", r.ID)
			}
			if r.RequiredBadgeID != "" {
				v.addf("reward %s: point rewards are not badge-gated", r.ID)
			}
		}
	}

	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{CatalogID: c.ID, Problems: v.problems}
}

type checker struct {
	problems []string
}

func (v *checker) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func checkTaskConfig(v *checker, t domain.Task) {
	set := map[domain.TaskType]bool{
		domain.TaskReading:     t.Reading != nil,
		domain.TaskQuiz:        t.Quiz != nil,
		domain.TaskApplication: t.Application != nil,
		domain.TaskVideo:       t.Video != nil,
		domain.TaskReferral:    t.Referral != nil,
	}
	for typ, present := range set {
		if present && typ != t.Type {
			v.addf("task %s: %s configuration on a %s task", t.ID, typ, t.Type)
		}
	}
	if t.Type != domain.TaskRegular && t.Type.Valid() && !set[t.Type] {
		v.addf("task %s: missing %s configuration", t.ID, t.Type)
	}

	if t.Quiz != nil {
		for i, q := range t.Quiz.Questions {
			correct := 0
			for _, opt := range q.Options {
				if opt.Correct {
					correct++
				}
			}
			if correct != 1 {
				v.addf("task %s: question %d must have exactly one correct option", t.ID, i)
			}
		}
	}
	if t.Referral != nil {
		names := make(map[string]bool)
		for _, f := range t.Referral.Fields {
			if names[f.Name] {
				v.addf("task %s: duplicate form field %s", t.ID, f.Name)
			}
			names[f.Name] = true
			if err := CheckRule(f.Rules); err != nil {
				v.addf("task %s: field %s: %v", t.ID, f.Name, err)
			}
		}
	}
}

// CheckRule reports whether a validator tag string is usable. The validator
// panics on unknown tags, so the check runs under recover.
func CheckRule(rule string) (err error) {
	if rule == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rule %q: %v", rule, r)
		}
	}()
	_ = validate.Var("", rule)
	return nil
}

func uniqueIDs(v *checker, kind string, n int, id func(int) string) map[string]int {
	seen := make(map[string]int, n)
	for i := 0; i < n; i++ {
		key := id(i)
		if _, dup := seen[key]; dup {
			v.addf("duplicate %s id %s", kind, key)
			continue
		}
		seen[key] = i
	}
	return seen
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, x := range a {
		as[x] = true
	}
	bs := make(map[string]bool, len(b))
	for _, x := range b {
		bs[x] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for x := range as {
		if !bs[x] {
			return false
		}
	}
	return true
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
