package domain

import (
	"slices"
	"strings"
)

type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Rank orders statuses along the only path the client can move a ticket.
func (s Status) Rank() int {
	switch s {
	case StatusBacklog:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether next is the single forward step from s.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.Rank() >= 0 && next.Rank() == s.Rank()+1
}

func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Ticket struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Status         Status   `json:"status" enum:"backlog,in_progress,completed"`
	Priority       Priority `json:"priority" enum:"low,medium,high,critical"`
	EstimatedHours float64  `json:"estimated_hours"`
	Complexity     int      `json:"complexity"`
	Tasks          []string `json:"tasks,omitempty"`
	Dependencies   []int64  `json:"dependencies,omitempty"`
	AssignedTo     *int64   `json:"assigned_to,omitempty"`
	JiraID         *string  `json:"jira_id,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
	CompletedAt    *string  `json:"completed_at,omitempty"`
}

// Clone returns a copy of t that shares no slices or pointers with it.
func (t Ticket) Clone() Ticket {
	t.Tasks = slices.Clone(t.Tasks)
	t.Dependencies = slices.Clone(t.Dependencies)
	t.AssignedTo = clonePtr(t.AssignedTo)
	t.JiraID = clonePtr(t.JiraID)
	t.CompletedAt = clonePtr(t.CompletedAt)
	return t
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type Developer struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Skills          []string `json:"skills"`
	Availability    float64  `json:"availability"`
	CurrentWorkload float64  `json:"current_workload"`
	ExperienceLevel int      `json:"experience_level"`
}

// Clone returns a copy of d with its own skills slice.
func (d Developer) Clone() Developer {
	d.Skills = slices.Clone(d.Skills)
	return d
}

// Utilization is workload over availability. It is never stored.
func (d Developer) Utilization() float64 {
	if d.Availability <= 0 {
		return 0
	}
	return d.CurrentWorkload / d.Availability
}

type Recommendation struct {
	DeveloperID   int64    `json:"developer_id"`
	DeveloperName string   `json:"developer_name"`
	MatchScore    float64  `json:"match_score"`
	SkillsMatch   []string `json:"skills_match,omitempty"`
	Method        string   `json:"method,omitempty"`
}

type TimelineEstimate struct {
	EstimatedHours int       `json:"estimated_hours"`
	Complexity     int       `json:"complexity"`
	MeanDuration   int       `json:"mean_duration"`
	RiskLevel      RiskLevel `json:"risk_level"`
}

type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Event is an entry of the local activity log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Actor      string `json:"actor"`
	Payload    string `json:"payload_json"`
}
