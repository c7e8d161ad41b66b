package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/iWorld-y/account_radar/pkg/finance"
	"github.com/iWorld-y/account_radar/pkg/model"
	"github.com/iWorld-y/account_radar/pkg/search"
)

func TestResearch_FullPipeline(t *testing.T) {
	cm := &fakeChatModel{}
	searcher := &fakeSearcher{}
	fin := &fakeFinance{}
	a := newTestAgent(cm, searcher, fin)
	sess := NewSession("")

	profile, err := a.research(context.Background(), sess, "Tesla", nil)
	if err != nil {
		t.Fatalf("research() error = %v", err)
	}

	for _, key := range model.SectionKeys() {
		content, ok := profile.Plan.Section(key)
		if !ok || strings.TrimSpace(content) == "" {
			t.Errorf("section %q is empty", key)
		}
	}
	if profile.Snapshot == nil || !profile.Snapshot.Resolved {
		t.Errorf("Snapshot = %+v, want resolved", profile.Snapshot)
	}
	if profile.OriginalReport != profile.CurrentReport {
		t.Errorf("fresh profile reports differ")
	}
	if len(profile.Provenance) == 0 {
		t.Errorf("Provenance is empty")
	}

	// 工具日志应覆盖检索、行情与两次 LLM 合成
	entries := sess.ToolLog().Snapshot()
	if len(entries) < 4 {
		t.Fatalf("tool log has %d entries, want >= 4", len(entries))
	}
	providers := map[string]bool{}
	for _, e := range entries {
		providers[e.Provider] = true
	}
	for _, want := range []string{"search:fake", "finance:yahoo", "llm:report", "llm:extract"} {
		if !providers[want] {
			t.Errorf("tool log missing provider %q, got %v", want, providers)
		}
	}

	// 档案已提交且成为活跃公司
	if got, ok := sess.Profile("tesla"); !ok || got != profile {
		t.Errorf("profile not committed under canonical name")
	}
	if sess.LastActive() != "tesla" {
		t.Errorf("LastActive = %q, want tesla", sess.LastActive())
	}
}

func TestResearch_InvalidTickerDegrades(t *testing.T) {
	cm := &fakeChatModel{}
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "no ticker here", URL: "https://example.com", Content: strings.Repeat("text ", 200)},
	}}
	fin := &fakeFinance{err: finance.ErrInvalidTicker}
	a := newTestAgent(cm, searcher, fin)
	sess := NewSession("")

	profile, err := a.research(context.Background(), sess, "TSLA Holdings", nil)
	if err != nil {
		t.Fatalf("research() error = %v, want degraded success", err)
	}
	if profile.Snapshot == nil || profile.Snapshot.Resolved {
		t.Errorf("Snapshot = %+v, want unresolved", profile.Snapshot)
	}
	if profile.Snapshot.Reason == "" {
		t.Errorf("unresolved snapshot has no reason")
	}
}

func TestResearch_SearchExhaustedStillProduces(t *testing.T) {
	cm := &fakeChatModel{}
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	fin := &fakeFinance{}
	a := newTestAgent(cm, searcher, fin)
	sess := NewSession("")

	profile, err := a.research(context.Background(), sess, "Tesla", nil)
	if err != nil {
		t.Fatalf("research() error = %v, want success with empty provenance", err)
	}
	if len(profile.Provenance) != 0 {
		t.Errorf("Provenance = %v, want empty", profile.Provenance)
	}
	if profile.CurrentReport == "" {
		t.Errorf("report is empty")
	}
}

func TestResearch_RefusalAborts(t *testing.T) {
	cm := &fakeChatModel{refuseReport: true}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sess := NewSession("")

	_, err := a.research(context.Background(), sess, "Tesla", nil)
	if !errors.Is(err, ErrGenerationRefused) {
		t.Fatalf("research() error = %v, want ErrGenerationRefused", err)
	}
	// 拒答不得提交半成品档案
	if _, ok := sess.Profile("tesla"); ok {
		t.Errorf("refused research still committed a profile")
	}
}

func TestExtractPlan_RetriesThenSucceeds(t *testing.T) {
	cm := &fakeChatModel{extractFailures: 1}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sess := NewSession("")

	plan, err := a.extractPlan(context.Background(), sess, "Tesla", sampleReport)
	if err != nil {
		t.Fatalf("extractPlan() error = %v", err)
	}
	if plan.ExecutiveSummary == model.ExtractionFailed {
		t.Errorf("plan degraded despite retry success")
	}
	if cm.extractCalls != 2 {
		t.Errorf("extract calls = %d, want 2", cm.extractCalls)
	}
}

func TestExtractPlan_ExhaustedFallsBack(t *testing.T) {
	cm := &fakeChatModel{extractFailures: 10}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sess := NewSession("")

	plan, err := a.extractPlan(context.Background(), sess, "Tesla", sampleReport)
	if !errors.Is(err, ErrMalformedExtraction) {
		t.Fatalf("extractPlan() error = %v, want ErrMalformedExtraction", err)
	}
	for _, key := range model.SectionKeys() {
		if content, _ := plan.Section(key); content != model.ExtractionFailed {
			t.Errorf("section %q = %q, want placeholder", key, content)
		}
	}
	if cm.extractCalls != extractionRetries+1 {
		t.Errorf("extract calls = %d, want %d", cm.extractCalls, extractionRetries+1)
	}
}

func TestParsePlan_MissingKeyRejected(t *testing.T) {
	raw := `{"company_name":"X","executive_summary":"a","products_services":"b","market_analysis":"c","financial_health":"d","swot":"e"}`
	if _, err := parsePlan(raw, "X"); err == nil {
		t.Errorf("parsePlan() accepted JSON missing strategic_recommendations")
	}
}

func TestParsePlan_EmptySectionAllowed(t *testing.T) {
	raw := `{"company_name":"X","executive_summary":"","products_services":"b","market_analysis":"c","financial_health":"d","swot":"e","strategic_recommendations":"f"}`
	plan, err := parsePlan(raw, "X")
	if err != nil {
		t.Fatalf("parsePlan() error = %v", err)
	}
	if plan.ExecutiveSummary != "" {
		t.Errorf("ExecutiveSummary = %q, want empty", plan.ExecutiveSummary)
	}
}

func TestHasAllSections(t *testing.T) {
	if !hasAllSections(sampleReport) {
		t.Errorf("sampleReport should contain all six headings")
	}
	if hasAllSections("# Executive Summary\nonly one") {
		t.Errorf("partial report should fail the check")
	}
}
