package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/iWorld-y/account_radar/pkg/model"
)

func researchOne(t *testing.T, a *Agent) string {
	t.Helper()
	resp := a.HandleTurn(context.Background(), &TurnRequest{Message: "Analyze Tesla"}, nil)
	if resp.ErrorCode != "" {
		t.Fatalf("setup research failed: %s", resp.ErrorCode)
	}
	return resp.SessionID
}

func TestEditSection_RegeneratesReport(t *testing.T) {
	cm := &fakeChatModel{}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sid := researchOne(t, a)

	before, err := a.Plan(sid, "Tesla")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	original := before.OriginalReport

	newSwot := "Strength: vertical integration. Threat: new competition from BYD."
	profile, err := a.EditSection(context.Background(), sid, "Tesla", model.SectionSWOT, newSwot)
	if err != nil {
		t.Fatalf("EditSection() error = %v", err)
	}

	if got, _ := profile.Plan.Section(model.SectionSWOT); got != newSwot {
		t.Errorf("swot = %q, want patched content", got)
	}
	// 首版报告不可变，当前报告重算且六节齐全
	if profile.OriginalReport != original {
		t.Errorf("OriginalReport changed by edit")
	}
	if profile.CurrentReport == original {
		t.Errorf("CurrentReport was not regenerated")
	}
	if !hasAllSections(profile.CurrentReport) {
		t.Errorf("regenerated report is missing headings:\n%s", profile.CurrentReport)
	}
	if len(profile.Edits) != 1 || profile.Edits[0].Section != model.SectionSWOT {
		t.Errorf("Edits = %+v", profile.Edits)
	}
}

func TestEditSection_UnknownKeyLeavesProfileUntouched(t *testing.T) {
	cm := &fakeChatModel{}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sid := researchOne(t, a)

	before, _ := a.Plan(sid, "Tesla")
	beforeSwot, _ := before.Plan.Section(model.SectionSWOT)

	_, err := a.EditSection(context.Background(), sid, "Tesla", "valuation", "nope")
	if !errors.Is(err, ErrInvalidEditField) {
		t.Fatalf("EditSection() error = %v, want ErrInvalidEditField", err)
	}

	after, _ := a.Plan(sid, "Tesla")
	if got, _ := after.Plan.Section(model.SectionSWOT); got != beforeSwot {
		t.Errorf("rejected edit still changed the plan")
	}
	if len(after.Edits) != 0 {
		t.Errorf("rejected edit was recorded: %+v", after.Edits)
	}
}

func TestEditSection_UnknownCompany(t *testing.T) {
	cm := &fakeChatModel{}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sid := researchOne(t, a)

	_, err := a.EditSection(context.Background(), sid, "Ford", model.SectionSWOT, "x")
	if !errors.Is(err, ErrCompanyNotFound) {
		t.Errorf("EditSection() error = %v, want ErrCompanyNotFound", err)
	}
}

func TestEditSection_AliasResolvesToSameProfile(t *testing.T) {
	cm := &fakeChatModel{}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sid := researchOne(t, a)

	// "Tesla Inc." 与 "Tesla" 归并到同一档案
	profile, err := a.EditSection(context.Background(), sid, "Tesla Inc.", model.SectionRecommendations, "Double down on energy.")
	if err != nil {
		t.Fatalf("EditSection() error = %v", err)
	}
	if profile.Canonical != "tesla" {
		t.Errorf("Canonical = %q, want tesla", profile.Canonical)
	}
	if !strings.Contains(profile.Plan.StrategicRecommendations, "energy") {
		t.Errorf("recommendation not applied")
	}
}
