package domain

import "time"

// TaskPhase is the gate state of a task for one learner.
type TaskPhase string

const (
	PhasePending       TaskPhase = "pending"
	PhaseTiming        TaskPhase = "timing"
	PhaseAnswering     TaskPhase = "answering"
	PhaseLinkOpened    TaskPhase = "link_opened"
	PhaseWatching      TaskPhase = "watching"
	PhaseFormSubmitted TaskPhase = "form_submitted"
	PhaseCompleted     TaskPhase = "completed"
)

// TaskState is the learner-facing view of one task.
type TaskState struct {
	TaskID        string    `json:"taskId"`
	ModuleID      string    `json:"moduleId"`
	Type          TaskType  `json:"type"`
	Phase         TaskPhase `json:"phase"`
	Completed     bool      `json:"completed"`
	Active        bool      `json:"active"`
	RemainingMs   int64     `json:"remainingMs,omitempty"`
	QuestionCount int       `json:"questionCount,omitempty"`
	Answered      int       `json:"answered,omitempty"`
	LinkOpened    bool      `json:"linkOpened,omitempty"`
	VideoEnded    bool      `json:"videoEnded,omitempty"`
	FormSubmitted bool      `json:"formSubmitted,omitempty"`
}

// AnswerResult summarizes a recorded quiz answer. Correct is feedback only.
type AnswerResult struct {
	TaskID        string `json:"taskId"`
	QuestionIndex int    `json:"questionIndex"`
	Choice        int    `json:"choice"`
	Correct       bool   `json:"correct"`
	Answered      int    `json:"answered"`
	QuestionCount int    `json:"questionCount"`
	FullyAnswered bool   `json:"fullyAnswered"`
}

// ModuleProgress reports task completion inside a module.
type ModuleProgress struct {
	ModuleID       string `json:"moduleId"`
	BadgeID        string `json:"badgeId"`
	Completed      bool   `json:"completed"`
	CompletedTasks int    `json:"completedTasks"`
	TotalTasks     int    `json:"totalTasks"`
}

// BadgeStatus reports whether a badge is earned.
type BadgeStatus struct {
	BadgeID          string `json:"badgeId"`
	Earned           bool   `json:"earned"`
	Points           int    `json:"points"`
	CompletedModules int    `json:"completedModules"`
	TotalModules     int    `json:"totalModules"`
}

// CertificateStatus reports whether a certificate is earned.
type CertificateStatus struct {
	CertificateID string `json:"certificateId"`
	Earned        bool   `json:"earned"`
	EarnedBadges  int    `json:"earnedBadges"`
	TotalBadges   int    `json:"totalBadges"`
}

// RewardStatus reports the claim state of a reward. Reason is set when the
// reward is neither claimed nor claimable.
type RewardStatus struct {
	RewardID  string     `json:"rewardId"`
	Kind      RewardKind `json:"kind"`
	Claimed   bool       `json:"claimed"`
	Claimable bool       `json:"claimable"`
	PointCost int        `json:"pointCost,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Ledger is a snapshot of the derived point balance.
type Ledger struct {
	TotalEarned int `json:"totalEarned"`
	Spent       int `json:"spent"`
	Available   int `json:"available"`
}

// Overview bundles every derived status of a learner.
type Overview struct {
	LearnerID    string              `json:"learnerId"`
	CatalogID    string              `json:"catalogId"`
	Modules      []ModuleProgress    `json:"modules"`
	Badges       []BadgeStatus       `json:"badges"`
	Certificates []CertificateStatus `json:"certificates"`
	Rewards      []RewardStatus      `json:"rewards"`
	Ledger       Ledger              `json:"ledger"`
	Warnings     []string            `json:"warnings,omitempty"`
}

// EventType names a progression event.
type EventType string

const (
	EventTaskCompleted     EventType = "task_completed"
	EventModuleCompleted   EventType = "module_completed"
	EventBadgeEarned       EventType = "badge_earned"
	EventCertificateEarned EventType = "certificate_earned"
	EventRewardClaimed     EventType = "reward_claimed"
)

// Event is published to learner subscribers after each committed change.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	LearnerID string    `json:"learnerId"`
	SubjectID string    `json:"subjectId"`
	At        time.Time `json:"at"`
}

// SignalType names an external event delivered to an active task.
type SignalType string

const (
	SignalVideoEnded    SignalType = "video_ended"
	SignalLinkOpened    SignalType = "link_opened"
	SignalFormSubmitted SignalType = "form_submitted"
)

// Signal is an event from the task view (player, external link, form).
type Signal struct {
	Type SignalType        `json:"type"`
	Form map[string]string `json:"form,omitempty"`
}
