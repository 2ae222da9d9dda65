package workflow

import (
	"errors"
	"testing"

	"estimator/internal/apperror"
)

var (
	initiator = Actor{ID: "clerk-1", Roles: []string{"CLERK"}}
	je        = Actor{ID: "je-1", Roles: []string{"JE"}}
	sde       = Actor{ID: "sde-1", Roles: []string{"SDE"}}
	de        = Actor{ID: "de-1", Roles: []string{"DE"}}
	ee        = Actor{ID: "ee-1", Roles: []string{"EE"}}
	eeFull    = Actor{ID: "ee-1", Roles: []string{"EE"}, Override: true}
)

func submitted(t *testing.T) State {
	t.Helper()
	out, err := Submit(State{}, initiator)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return out.Next
}

func mustAct(t *testing.T, s State, a Action, actor Actor) Outcome {
	t.Helper()
	out, err := Act(s, a, actor)
	if err != nil {
		t.Fatalf("Act(%s by %s): %v", a, actor.ID, err)
	}
	return out
}

func TestSubmitCreatesLevelOne(t *testing.T) {
	out, err := Submit(State{}, initiator)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Next.Status != StatusPendingApproval || out.Next.CurrentLevel != 1 {
		t.Fatalf("got status %s level %d, want pending_approval level 1", out.Next.Status, out.Next.CurrentLevel)
	}
	if out.Next.CurrentApprover != "JE" {
		t.Errorf("CurrentApprover = %q, want JE", out.Next.CurrentApprover)
	}
	if out.History != HistorySubmitted {
		t.Errorf("History = %s, want submitted", out.History)
	}
	if out.Next.InitiatedBy != initiator.ID || out.Next.Cycle != 1 {
		t.Errorf("InitiatedBy/Cycle = %s/%d", out.Next.InitiatedBy, out.Next.Cycle)
	}
}

func TestSubmitRejectsActiveWorkflow(t *testing.T) {
	s := submitted(t)
	if _, err := Submit(s, initiator); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("double submit err = %v, want ErrConflict", err)
	}

	s.Status = StatusApproved
	if _, err := Submit(s, initiator); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("submit after approval err = %v, want ErrConflict", err)
	}
}

func TestForwardIsMonotonic(t *testing.T) {
	s := submitted(t)
	for i, approver := range []Actor{je, sde, de} {
		out := mustAct(t, s, ActionForward, approver)
		if out.History != HistoryForwarded {
			t.Errorf("step %d history = %s, want forwarded", i, out.History)
		}
		if out.Next.CurrentLevel != s.CurrentLevel+1 {
			t.Errorf("step %d level = %d, want %d", i, out.Next.CurrentLevel, s.CurrentLevel+1)
		}
		s = out.Next
	}
	if s.CurrentLevel != 4 || s.Status != StatusPendingApproval {
		t.Fatalf("after three forwards: level %d status %s, want 4 pending_approval", s.CurrentLevel, s.Status)
	}

	out := mustAct(t, s, ActionFinalApprove, ee)
	if out.Next.Status != StatusApproved || out.History != HistoryApproved {
		t.Fatalf("final approve: status %s history %s", out.Next.Status, out.History)
	}
}

func TestForwardPastLastLevelApproves(t *testing.T) {
	s := submitted(t)
	s.CurrentLevel = MaxLevel
	s.CurrentApprover = RoleForLevel(MaxLevel)

	out := mustAct(t, s, ActionForward, ee)
	if out.Next.Status != StatusApproved || out.History != HistoryApproved {
		t.Fatalf("status %s history %s, want approved/approved", out.Next.Status, out.History)
	}
}

func TestWrongApproverIsForbidden(t *testing.T) {
	s := submitted(t)
	for _, actor := range []Actor{sde, ee, initiator} {
		if _, err := Act(s, ActionForward, actor); !errors.Is(err, apperror.ErrForbidden) {
			t.Errorf("%s forwarding at level 1: err = %v, want ErrForbidden", actor.ID, err)
		}
	}
}

func TestOverrideActsAtAnyLevel(t *testing.T) {
	s := submitted(t)
	out := mustAct(t, s, ActionForward, eeFull)
	if out.Next.CurrentLevel != 2 {
		t.Fatalf("level = %d, want 2", out.Next.CurrentLevel)
	}
	out = mustAct(t, out.Next, ActionFinalApprove, eeFull)
	if out.Next.Status != StatusApproved {
		t.Fatalf("status = %s, want approved", out.Next.Status)
	}
	if out.ActedAtLevel != 2 {
		t.Errorf("ActedAtLevel = %d, want 2", out.ActedAtLevel)
	}
}

func TestFinalApproveBelowLastLevel(t *testing.T) {
	s := submitted(t)
	if _, err := Act(s, ActionFinalApprove, je); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestTerminalStatesRejectActions(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusRejected} {
		s := submitted(t)
		s.Status = status
		for _, a := range []Action{ActionForward, ActionFinalApprove, ActionReject, ActionSendBack} {
			if _, err := Act(s, a, eeFull); !errors.Is(err, apperror.ErrConflict) {
				t.Errorf("%s on %s: err = %v, want ErrConflict", a, status, err)
			}
		}
	}
}

func TestTerminalCheckPrecedesAuthorization(t *testing.T) {
	s := submitted(t)
	s.Status = StatusRejected
	if _, err := Act(s, ActionForward, initiator); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	out := mustAct(t, submitted(t), ActionReject, je)
	if out.Next.Status != StatusRejected || !out.Next.Status.Terminal() {
		t.Fatalf("status = %s", out.Next.Status)
	}
	if _, err := Submit(out.Next, initiator); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("resubmit after reject: err = %v, want ErrConflict", err)
	}
}

func TestSendBackAndResubmit(t *testing.T) {
	s := mustAct(t, submitted(t), ActionForward, je).Next
	out := mustAct(t, s, ActionSendBack, sde)
	if out.Next.Status != StatusSentBack || out.History != HistorySentBack {
		t.Fatalf("status %s history %s", out.Next.Status, out.History)
	}
	if out.Next.CurrentApprover != initiator.ID {
		t.Errorf("CurrentApprover = %q, want initiator", out.Next.CurrentApprover)
	}

	if _, err := Act(out.Next, ActionForward, sde); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("acting on sent back workflow: err = %v, want ErrConflict", err)
	}
	if _, err := Submit(out.Next, je); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("resubmit by non-initiator: err = %v, want ErrForbidden", err)
	}

	re, err := Submit(out.Next, initiator)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if re.Next.Status != StatusPendingApproval || re.Next.CurrentLevel != 1 || re.Next.Cycle != 2 {
		t.Fatalf("resubmitted state = %+v", re.Next)
	}
}

func TestActWithoutWorkflow(t *testing.T) {
	if _, err := Act(State{}, ActionForward, je); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction("approve"); err != nil || a != ActionForward {
		t.Fatalf("ParseAction(approve) = %s, %v", a, err)
	}
	if _, err := ParseAction("submit"); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("ParseAction(submit) err = %v, want ErrValidation", err)
	}
}
