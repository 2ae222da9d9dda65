package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"estimator/internal/apperror"
	"estimator/internal/model"
)

func TestApprovalEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work, _, _ := f.seedItem(t, "W1")

	wf, err := f.approvals.SubmitApproval(ctx, work.ID.String(), clerk)
	if err != nil {
		t.Fatalf("SubmitApproval: %v", err)
	}
	if wf.Status != "pending_approval" || wf.CurrentLevel != 1 || wf.CurrentApprover != "JE" {
		t.Fatalf("after submit: %+v", wf)
	}
	if wf.WorkNo != "W1" {
		t.Errorf("work_no = %q", wf.WorkNo)
	}

	wf, err = f.approvals.ActOnApproval(ctx, wf.ID.String(), ApprovalActionRequest{Action: "forward", Comment: "ok"}, jeUser)
	if err != nil {
		t.Fatalf("JE forward: %v", err)
	}
	if wf.CurrentLevel != 2 || wf.CurrentApprover != "SDE" {
		t.Fatalf("after forward: level=%d approver=%s", wf.CurrentLevel, wf.CurrentApprover)
	}

	wf, err = f.approvals.ActOnApproval(ctx, wf.ID.String(), ApprovalActionRequest{Action: "final_approve"}, eeUser)
	if err != nil {
		t.Fatalf("EE final approve: %v", err)
	}
	if wf.Status != "approved" {
		t.Fatalf("status = %s, want approved", wf.Status)
	}

	history, err := f.approvals.GetHistory(ctx, wf.ID.String())
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	want := []string{"submitted", "forwarded", "approved"}
	if len(history) != len(want) {
		t.Fatalf("history len = %d, want %d", len(history), len(want))
	}
	for i, h := range history {
		if h.Action != want[i] || h.Sequence != i+1 {
			t.Errorf("history[%d] = %s seq %d", i, h.Action, h.Sequence)
		}
	}
	if history[1].Comment != "ok" || history[1].ApproverRole != "JE" {
		t.Errorf("forward entry = %+v", history[1])
	}
	if history[2].Level != 2 {
		t.Errorf("override approval recorded at level %d, want 2", history[2].Level)
	}

	if got := len(f.events.events); got != 3 {
		t.Errorf("published %d events, want 3", got)
	}

	got, err := f.estimates.GetWork(ctx, work.ID.String())
	if err != nil {
		t.Fatalf("GetWork: %v", err)
	}
	if got.ApprovalStatus != "approved" {
		t.Errorf("work approval status = %s", got.ApprovalStatus)
	}
}

func TestApprovalTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work, _, _ := f.seedItem(t, "W2")

	wf, err := f.approvals.SubmitApproval(ctx, work.ID.String(), clerk)
	if err != nil {
		t.Fatalf("SubmitApproval: %v", err)
	}
	if _, err := f.approvals.ActOnApproval(ctx, wf.ID.String(), ApprovalActionRequest{Action: "reject"}, jeUser); err != nil {
		t.Fatalf("reject: %v", err)
	}

	for _, action := range []string{"forward", "send_back", "final_approve", "reject"} {
		_, err := f.approvals.ActOnApproval(ctx, wf.ID.String(), ApprovalActionRequest{Action: action}, eeUser)
		if !errors.Is(err, apperror.ErrConflict) {
			t.Errorf("%s on rejected workflow: err = %v, want conflict", action, err)
		}
	}
	if _, err := f.approvals.SubmitApproval(ctx, work.ID.String(), clerk); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("resubmit rejected: err = %v, want conflict", err)
	}

	history, err := f.approvals.GetHistory(ctx, wf.ID.String())
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history len = %d, want 2", len(history))
	}
}

func TestApprovalWrongLevelForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work, _, _ := f.seedItem(t, "W3")

	wf, err := f.approvals.SubmitApproval(ctx, work.ID.String(), clerk)
	if err != nil {
		t.Fatalf("SubmitApproval: %v", err)
	}
	_, err = f.approvals.ActOnApproval(ctx, wf.ID.String(), ApprovalActionRequest{Action: "forward"}, sdeUsr)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("SDE at level 1: err = %v, want forbidden", err)
	}
	_, err = f.approvals.ActOnApproval(ctx, wf.ID.String(), ApprovalActionRequest{Action: "final_approve"}, jeUser)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("JE final approve: err = %v, want forbidden", err)
	}
	_, err = f.approvals.ActOnApproval(ctx, wf.ID.String(), ApprovalActionRequest{Action: "escalate"}, jeUser)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("unknown action: err = %v, want validation", err)
	}
	if _, err := f.approvals.SubmitApproval(ctx, work.ID.String(), clerk); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("double submit: err = %v, want conflict", err)
	}
}

func TestApprovalSendBackAndResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work, sub, _ := f.seedItem(t, "W4")

	wf, err := f.approvals.SubmitApproval(ctx, work.ID.String(), clerk)
	if err != nil {
		t.Fatalf("SubmitApproval: %v", err)
	}

	// Content is locked while pending.
	if _, err := f.estimates.CreateItem(ctx, sub.ID.String(), CreateItemRequest{Description: "Filling"}, clerk.ID); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("edit while pending: err = %v, want conflict", err)
	}

	wf, err = f.approvals.ActOnApproval(ctx, wf.ID.String(), ApprovalActionRequest{Action: "send_back", Comment: "fix quantities"}, jeUser)
	if err != nil {
		t.Fatalf("send_back: %v", err)
	}
	if wf.Status != "sent_back" || wf.CurrentApprover != clerk.ID {
		t.Fatalf("after send back: %+v", wf)
	}

	if _, err := f.estimates.CreateItem(ctx, sub.ID.String(), CreateItemRequest{Description: "Filling"}, clerk.ID); err != nil {
		t.Fatalf("edit after send back: %v", err)
	}

	if _, err := f.approvals.SubmitApproval(ctx, work.ID.String(), jeUser); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("resubmit by non-initiator: err = %v, want forbidden", err)
	}
	firstCycle := time.Now().UTC().Add(-24 * time.Hour)
	if err := f.db.Model(&model.ApprovalWorkflow{}).Where("id = ?", wf.ID).Update("initiated_at", firstCycle).Error; err != nil {
		t.Fatalf("backdate workflow: %v", err)
	}
	wf, err = f.approvals.SubmitApproval(ctx, work.ID.String(), clerk)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	stored, err := f.approvals.GetByWork(ctx, work.ID.String())
	if err != nil {
		t.Fatalf("GetByWork: %v", err)
	}
	if !stored.InitiatedAt.After(firstCycle.Add(time.Hour)) {
		t.Errorf("initiated_at = %v, want the resubmission time", stored.InitiatedAt)
	}
	if wf.Cycle != 2 || wf.CurrentLevel != 1 || wf.Status != "pending_approval" {
		t.Errorf("after resubmit: cycle=%d level=%d status=%s", wf.Cycle, wf.CurrentLevel, wf.Status)
	}
	if len(wf.History) != 3 {
		t.Errorf("history len = %d, want 3", len(wf.History))
	}

	pending, total, err := f.approvals.ListWorkflows(ctx, ApprovalFilter{Status: "pending_approval", Approver: "JE"})
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if total != 1 || len(pending) != 1 || pending[0].WorkNo != "W4" {
		t.Errorf("inbox = %+v (total %d)", pending, total)
	}
	if _, _, err := f.approvals.ListWorkflows(ctx, ApprovalFilter{Status: "archived"}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad status filter: err = %v", err)
	}
}

func TestActOnMissingWorkflow(t *testing.T) {
	f := newFixture(t)
	_, err := f.approvals.ActOnApproval(context.Background(), "3f2b8c1e-5d4a-4e6f-9a7b-1c2d3e4f5a6b", ApprovalActionRequest{Action: "forward"}, jeUser)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, err := f.approvals.GetByWork(context.Background(), "not-a-uuid"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad id: err = %v, want validation", err)
	}
}
