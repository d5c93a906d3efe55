package models

import "time"

// AlertCondition says which side of the threshold is the danger zone.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// EscalationLevel is the ordinal severity state of an unresolved alert.
// It only moves upward while the alert stays active; URGENT is terminal
// and repeats instead of escalating further.
type EscalationLevel int

const (
	LevelPreventive EscalationLevel = iota
	LevelWarning
	LevelCritical
	LevelUrgent
)

func (l EscalationLevel) String() string {
	switch l {
	case LevelPreventive:
		return "preventive"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// LevelPolicy is the tunable per-level escalation configuration: how long to
// wait before the next escalation, the notification priority, and the
// channel tags the dispatcher fans out to.
type LevelPolicy struct {
	Name        string   `json:"name" mapstructure:"name"`
	WaitMinutes float64  `json:"wait_minutes" mapstructure:"wait_minutes"`
	Priority    int      `json:"priority" mapstructure:"priority"`
	Severity    string   `json:"severity" mapstructure:"severity"`
	Channels    []string `json:"channels" mapstructure:"channels"`
}

// ActiveAlert is one unresolved problem for one rule id. There is at most
// one per rule id at any time — the rule id is the de-duplication key.
type ActiveAlert struct {
	RuleID     string          `json:"rule_id"`
	DeviceID   string          `json:"device_id"`
	Sensor     string          `json:"sensor"`
	FirstValue float64         `json:"first_value"`
	LastValue  float64         `json:"last_value"`
	Threshold  float64         `json:"threshold"`
	Condition  AlertCondition  `json:"condition"`
	Level      EscalationLevel `json:"level"`
	SentCount  int             `json:"sent_count"`
	FirstSeen  time.Time       `json:"first_seen"`
	LastSent   time.Time       `json:"last_sent"`
}

// EscalationInfo rides along with a decision so the dispatcher can render
// escalation context and so resolution notices can bypass the cooldown.
type EscalationInfo struct {
	Level             int     `json:"level"`
	LevelName         string  `json:"level_name"`
	MinutesSinceFirst float64 `json:"minutes_since_first"`
	Repeat            bool    `json:"repeat"`
	BypassCooldown    bool    `json:"bypass_cooldown"`
}

// AlertDecision is a non-nil instruction to notify. A nil decision from the
// escalation manager means the evaluation was suppressed.
type AlertDecision struct {
	RuleID          string          `json:"rule_id"`
	Sensor          string          `json:"sensor"`
	Value           float64         `json:"value"`
	Threshold       float64         `json:"threshold"`
	Condition       AlertCondition  `json:"condition"`
	Level           EscalationLevel `json:"level"`
	LevelName       string          `json:"level_name"`
	Priority        int             `json:"priority"`
	Severity        string          `json:"severity"`
	Channels        []string        `json:"channels,omitempty"`
	Message         string          `json:"message"`
	SuggestedAction string          `json:"suggested_action,omitempty"`
	SentCount       int             `json:"sent_count"`
	IsWorsening     bool            `json:"is_worsening"`
	Escalation      *EscalationInfo `json:"escalation,omitempty"`
}

// Resolution reasons.
const (
	ReasonBackToSafeZone = "back_to_safe_zone"
	ReasonManualClear    = "manual_clear"
)

// ResolutionRecord is the immutable history entry written when an active
// alert resolves. The manager keeps a bounded FIFO of these.
type ResolutionRecord struct {
	ID            string        `json:"id" db:"id"`
	RuleID        string        `json:"rule_id" db:"rule_id"`
	Sensor        string        `json:"sensor" db:"sensor"`
	OriginalValue float64       `json:"original_value" db:"original_value"`
	FinalValue    float64       `json:"final_value" db:"final_value"`
	FirstSeen     time.Time     `json:"first_seen" db:"first_seen"`
	ResolvedAt    time.Time     `json:"resolved_at" db:"resolved_at"`
	Duration      time.Duration `json:"duration" db:"-"`
	Reason        string        `json:"reason" db:"reason"`
}

// AlertRule is one threshold rule the evaluator checks against incoming
// readings. Rules are global; the evaluator scopes the escalation state
// per device by composing the de-duplication key as "<rule id>:<device id>".
type AlertRule struct {
	ID        string         `json:"id" mapstructure:"id"`
	Sensor    string         `json:"sensor" mapstructure:"sensor"`
	Condition AlertCondition `json:"condition" mapstructure:"condition"`
	Threshold float64        `json:"threshold" mapstructure:"threshold"`
	Message   string         `json:"message" mapstructure:"message"`
}
