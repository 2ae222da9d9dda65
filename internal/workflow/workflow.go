// Package workflow is the approval state machine for an estimate. It only decides transitions;
// persisting them atomically is the caller's job.
package workflow

import (
	"estimator/internal/apperror"
)

type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusSentBack        Status = "sent_back"
)

// Terminal reports whether no further action is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Action string

const (
	ActionSubmit       Action = "submit"
	ActionForward      Action = "forward"
	ActionFinalApprove Action = "final_approve"
	ActionReject       Action = "reject"
	ActionSendBack     Action = "send_back"
)

// ParseAction accepts the actions an approver can take. Submit has its own entry point.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionForward, ActionFinalApprove, ActionReject, ActionSendBack:
		return a, nil
	case "approve":
		return ActionForward, nil
	default:
		return "", apperror.Validation("unknown approval action %q", s)
	}
}

// HistoryAction is what gets written to the audit trail for a transition.
type HistoryAction string

const (
	HistorySubmitted HistoryAction = "submitted"
	HistoryForwarded HistoryAction = "forwarded"
	HistoryApproved  HistoryAction = "approved"
	HistoryRejected  HistoryAction = "rejected"
	HistorySentBack  HistoryAction = "sent_back"
)

// Level is a position in the fixed approval chain.
type Level struct {
	Number int
	Role   string
	Title  string
}

// Levels is the chain every estimate goes through, lowest first.
var Levels = []Level{
	{Number: 1, Role: "JE", Title: "Junior Engineer"},
	{Number: 2, Role: "SDE", Title: "Sub-Divisional Engineer"},
	{Number: 3, Role: "DE", Title: "Divisional Engineer"},
	{Number: 4, Role: "EE", Title: "Executive Engineer"},
}

// MaxLevel is the level whose approver gives final approval.
var MaxLevel = len(Levels)

// RoleForLevel returns the role that must act at level n, or "" outside the chain.
func RoleForLevel(n int) string {
	if n < 1 || n > len(Levels) {
		return ""
	}
	return Levels[n-1].Role
}

// Actor is the resolved identity of whoever is acting. Override is decided by the identity
// provider and only consumed here.
type Actor struct {
	ID       string
	Roles    []string
	Override bool
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// State is the mutable part of a workflow row.
type State struct {
	Exists          bool
	Status          Status
	CurrentLevel    int
	CurrentApprover string
	InitiatedBy     string
	Cycle           int
}

// Outcome is an accepted transition.
type Outcome struct {
	Next    State
	History HistoryAction
	// Level the action was taken at, recorded on the history entry.
	ActedAtLevel int
}

// Submit starts or reopens the workflow.
func Submit(cur State, actor Actor) (Outcome, error) {
	if actor.ID == "" {
		return Outcome{}, apperror.Validation("submitting requires an identified user")
	}
	next := State{
		Exists:          true,
		Status:          StatusPendingApproval,
		CurrentLevel:    1,
		CurrentApprover: RoleForLevel(1),
		InitiatedBy:     actor.ID,
		Cycle:           1,
	}
	if cur.Exists {
		switch cur.Status {
		case StatusSentBack:
			if cur.InitiatedBy != actor.ID && !actor.Override {
				return Outcome{}, apperror.Forbidden("only the initiator can resubmit this estimate")
			}
			next.InitiatedBy = cur.InitiatedBy
			next.Cycle = cur.Cycle + 1
		case StatusPendingApproval:
			return Outcome{}, apperror.Conflict("estimate is already awaiting approval")
		default:
			return Outcome{}, apperror.Conflict("estimate is already %s", cur.Status)
		}
	}
	return Outcome{Next: next, History: HistorySubmitted, ActedAtLevel: 1}, nil
}

// Act applies an approver action to a pending workflow. Checks run in order: the workflow
// exists, it is pending, the actor may act at this level, then the action's own precondition.
func Act(cur State, action Action, actor Actor) (Outcome, error) {
	if !cur.Exists {
		return Outcome{}, apperror.NotFound("no approval workflow for this estimate")
	}
	if cur.Status.Terminal() {
		return Outcome{}, apperror.Conflict("workflow is already %s", cur.Status)
	}
	if cur.Status != StatusPendingApproval {
		return Outcome{}, apperror.Conflict("workflow is %s, waiting for resubmission", cur.Status)
	}
	if !CanAct(cur, actor) {
		return Outcome{}, apperror.Forbidden("level %d must be acted on by %s", cur.CurrentLevel, RoleForLevel(cur.CurrentLevel))
	}

	next := cur
	out := Outcome{ActedAtLevel: cur.CurrentLevel}
	switch action {
	case ActionForward:
		next.CurrentLevel = cur.CurrentLevel + 1
		if next.CurrentLevel > MaxLevel {
			next.Status = StatusApproved
			next.CurrentApprover = ""
			out.History = HistoryApproved
		} else {
			next.CurrentApprover = RoleForLevel(next.CurrentLevel)
			out.History = HistoryForwarded
		}
	case ActionFinalApprove:
		if cur.CurrentLevel != MaxLevel && !actor.Override {
			return Outcome{}, apperror.Forbidden("final approval is only allowed at level %d", MaxLevel)
		}
		next.Status = StatusApproved
		next.CurrentApprover = ""
		out.History = HistoryApproved
	case ActionReject:
		next.Status = StatusRejected
		next.CurrentApprover = ""
		out.History = HistoryRejected
	case ActionSendBack:
		next.Status = StatusSentBack
		next.CurrentApprover = cur.InitiatedBy
		out.History = HistorySentBack
	default:
		return Outcome{}, apperror.Validation("unknown approval action %q", action)
	}
	out.Next = next
	return out, nil
}

// CanAct reports whether actor may act on the workflow at its current level.
func CanAct(cur State, actor Actor) bool {
	if actor.Override {
		return true
	}
	return actor.HasRole(RoleForLevel(cur.CurrentLevel))
}
