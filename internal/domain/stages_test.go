package domain

import "testing"

func TestStageSequenceShape(t *testing.T) {
	seq := StageSequence()
	if len(seq) != 9 {
		t.Fatalf("expected 9 stages, got %d", len(seq))
	}
	if seq[0] != StageApplicationSubmitted || seq[len(seq)-1] != StageApproved {
		t.Fatalf("unexpected endpoints: %s .. %s", seq[0], seq[len(seq)-1])
	}
	for i, s := range seq {
		if StageOrder(s) != i {
			t.Fatalf("StageOrder(%s) = %d, want %d", s, StageOrder(s), i)
		}
		if StageTitle(s) == "" {
			t.Fatalf("no title for %s", s)
		}
	}
	if StageOrder("no_such_stage") != -1 {
		t.Fatalf("unknown stage must order to -1")
	}
}

func TestNextStage(t *testing.T) {
	next, ok := NextStage(StageApplicationSubmitted)
	if !ok || next != StageFormReview {
		t.Fatalf("next of first = %s, %v", next, ok)
	}
	if _, ok := NextStage(StageApproved); ok {
		t.Fatalf("approved must have no successor")
	}
	if _, ok := NextStage("no_such_stage"); ok {
		t.Fatalf("unknown stage must have no successor")
	}
}

func TestIsCommitteeRole(t *testing.T) {
	for _, role := range []string{RoleCommitteeMember, RoleCentralCommittee, RoleOverseer} {
		if !IsCommitteeRole(role) {
			t.Fatalf("%s should be a committee role", role)
		}
	}
	for _, role := range []string{RoleSingle, "elder", ""} {
		if IsCommitteeRole(role) {
			t.Fatalf("%s should not be a committee role", role)
		}
	}
}
