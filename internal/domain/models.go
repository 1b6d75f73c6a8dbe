package domain

import "time"

// TaskType tags a task with the rule that gates its completion.
type TaskType string

const (
	TaskRegular     TaskType = "regular"
	TaskReading     TaskType = "reading"
	TaskQuiz        TaskType = "quiz"
	TaskApplication TaskType = "application"
	TaskVideo       TaskType = "video"
	TaskReferral    TaskType = "referral"
)

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskRegular, TaskReading, TaskQuiz, TaskApplication, TaskVideo, TaskReferral:
		return true
	}
	return false
}

// Task is the smallest unit of learner work. Exactly one of the per-type
// configuration blocks matching Type is set (none for regular tasks).
type Task struct {
	ID          string             `json:"id" yaml:"id" validate:"required"`
	ModuleID    string             `json:"moduleId" yaml:"moduleId" validate:"required"`
	Type        TaskType           `json:"type" yaml:"type" validate:"required,oneof=regular reading quiz application video referral"`
	Title       string             `json:"title,omitempty" yaml:"title,omitempty"`
	Reading     *ReadingConfig     `json:"reading,omitempty" yaml:"reading,omitempty"`
	Quiz        *QuizConfig        `json:"quiz,omitempty" yaml:"quiz,omitempty"`
	Application *ApplicationConfig `json:"application,omitempty" yaml:"application,omitempty"`
	Video       *VideoConfig       `json:"video,omitempty" yaml:"video,omitempty"`
	Referral    *ReferralConfig    `json:"referral,omitempty" yaml:"referral,omitempty"`
}

// ReadingConfig holds the minimum reading time in seconds.
type ReadingConfig struct {
	Seconds float64 `json:"readingTime" yaml:"readingTime" validate:"gt=0"`
}

// Duration converts the configured reading time.
func (c ReadingConfig) Duration() time.Duration {
	return time.Duration(c.Seconds * float64(time.Second))
}

// QuizConfig lists the questions of a quiz task.
type QuizConfig struct {
	Questions []Question `json:"questions" yaml:"questions" validate:"min=1,dive"`
}

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct,omitempty" yaml:"correct,omitempty"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	Prompt  string   `json:"prompt" yaml:"prompt" validate:"required"`
	Options []Option `json:"options" yaml:"options" validate:"min=2"`
}

// CorrectIndex returns the index of the correct option, or -1.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// ApplicationConfig points at the external application the learner must open.
type ApplicationConfig struct {
	URL string `json:"url" yaml:"url" validate:"required,url"`
}

// VideoConfig describes a watch task. FallbackSeconds overrides the engine
// default fallback timeout when positive.
type VideoConfig struct {
	URL             string  `json:"url" yaml:"url" validate:"required,url"`
	FallbackSeconds float64 `json:"fallbackSeconds,omitempty" yaml:"fallbackSeconds,omitempty" validate:"gte=0"`
}

// Fallback returns the per-task fallback timeout, or def when unset.
func (c VideoConfig) Fallback(def time.Duration) time.Duration {
	if c.FallbackSeconds > 0 {
		return time.Duration(c.FallbackSeconds * float64(time.Second))
	}
	return def
}

// ReferralConfig is the form a referral task must submit.
type ReferralConfig struct {
	Fields []FormField `json:"fields" yaml:"fields" validate:"min=1,dive"`
}

// FormField is one referral form input. Rules uses validator tag syntax,
// e.g. "required,email".
type FormField struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Rules string `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Module is an ordered group of tasks belonging to one badge.
type Module struct {
	ID      string   `json:"id" yaml:"id" validate:"required"`
	BadgeID string   `json:"badgeId" yaml:"badgeId" validate:"required"`
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	TaskIDs []string `json:"taskIds" yaml:"taskIds" validate:"min=1,dive,required"`
}

// Badge is unlocked by completing its modules and carries a point value.
type Badge struct {
	ID                string   `json:"id" yaml:"id" validate:"required"`
	Title             string   `json:"title,omitempty" yaml:"title,omitempty"`
	Points            int      `json:"points" yaml:"points" validate:"gte=0"`
	RequiredModuleIDs []string `json:"requiredModuleIds" yaml:"requiredModuleIds" validate:"dive,required"`
}

// Certificate is unlocked by earning a set of badges.
type Certificate struct {
	ID               string   `json:"id" yaml:"id" validate:"required"`
	Title            string   `json:"title,omitempty" yaml:"title,omitempty"`
	RequiredBadgeIDs []string `json:"requiredBadgeIds" yaml:"requiredBadgeIds" validate:"min=1,dive,required"`
}

// RewardKind selects how a reward is gated.
type RewardKind string

const (
	RewardBadge RewardKind = "badge"
	RewardPoint RewardKind = "point"
)

// Reward is a claimable benefit gated by a badge or by ledger points.
type Reward struct {
	ID              string     `json:"id" yaml:"id" validate:"required"`
	Title           string     `json:"title,omitempty" yaml:"title,omitempty"`
	Kind            RewardKind `json:"kind" yaml:"kind" validate:"required,oneof=badge point"`
	RequiredBadgeID string     `json:"requiredBadgeId,omitempty" yaml:"requiredBadgeId,omitempty"`
	PointCost       int        `json:"pointCost,omitempty" yaml:"pointCost,omitempty" validate:"gte=0"`
}
