package agent

import (
	"context"
	"testing"

	"github.com/iWorld-y/account_radar/pkg/model"
)

func TestHandleTurn_Greeting(t *testing.T) {
	cm := &fakeChatModel{intentJSON: `{"intent":"greeting","companies":[],"ambiguous":false,"candidates":[]}`}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})

	resp := a.HandleTurn(context.Background(), &TurnRequest{Message: "hi"}, nil)
	if resp.Intent != model.IntentGreeting {
		t.Errorf("Intent = %v, want greeting", resp.Intent)
	}
	if resp.Reply != greetingReply {
		t.Errorf("Reply = %q", resp.Reply)
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("greeting produced %d tool calls, want 0", len(resp.ToolCalls))
	}
	if resp.SessionID == "" {
		t.Errorf("SessionID not assigned")
	}
}

func TestHandleTurn_OffTopicNoToolCalls(t *testing.T) {
	cm := &fakeChatModel{intentJSON: `{"intent":"off_topic","companies":[],"ambiguous":false,"candidates":[]}`}
	searcher := &fakeSearcher{}
	a := newTestAgent(cm, searcher, &fakeFinance{})

	resp := a.HandleTurn(context.Background(), &TurnRequest{Message: "how do I cook pasta"}, nil)
	if resp.Intent != model.IntentOffTopic {
		t.Errorf("Intent = %v, want off_topic", resp.Intent)
	}
	if resp.Reply != offTopicReply {
		t.Errorf("Reply = %q", resp.Reply)
	}
	if len(resp.ToolCalls) != 0 || searcher.calls != 0 {
		t.Errorf("off-topic turn touched tools: %d entries, %d searches", len(resp.ToolCalls), searcher.calls)
	}
}

func TestHandleTurn_ResearchThenCacheHit(t *testing.T) {
	cm := &fakeChatModel{}
	searcher := &fakeSearcher{}
	fin := &fakeFinance{}
	a := newTestAgent(cm, searcher, fin)

	first := a.HandleTurn(context.Background(), &TurnRequest{Message: "Analyze Tesla"}, nil)
	if first.ErrorCode != "" {
		t.Fatalf("first turn failed: %s", first.ErrorCode)
	}
	if first.Plan == nil {
		t.Fatalf("first turn has no plan")
	}
	if len(first.ToolCalls) == 0 {
		t.Fatalf("first turn logged no tool calls")
	}

	searchesBefore, finBefore := searcher.calls, fin.calls
	second := a.HandleTurn(context.Background(), &TurnRequest{SessionID: first.SessionID, Message: "Analyze Tesla"}, nil)
	if second.Plan == nil {
		t.Fatalf("cache hit returned no plan")
	}
	// 缓存命中：零外部调用，工具日志无新增
	if len(second.ToolCalls) != 0 {
		t.Errorf("cache hit produced %d tool calls, want 0", len(second.ToolCalls))
	}
	if searcher.calls != searchesBefore || fin.calls != finBefore {
		t.Errorf("cache hit touched providers")
	}
}

func TestHandleTurn_AmbiguousAsksClarification(t *testing.T) {
	cm := &fakeChatModel{intentJSON: `{"intent":"research","companies":["Apple"],"ambiguous":true,"candidates":["Apple Inc. (technology)","Apple Bank (banking)"]}`}
	searcher := &fakeSearcher{}
	a := newTestAgent(cm, searcher, &fakeFinance{})

	resp := a.HandleTurn(context.Background(), &TurnRequest{Message: "Tell me about Apple"}, nil)
	if resp.ErrorCode != "AMBIGUOUS_ENTITY" {
		t.Errorf("ErrorCode = %q, want AMBIGUOUS_ENTITY", resp.ErrorCode)
	}
	if len(resp.Candidates) != 2 {
		t.Errorf("Candidates = %v", resp.Candidates)
	}
	// 澄清阶段不得发起任何外部调用
	if len(resp.ToolCalls) != 0 || searcher.calls != 0 {
		t.Errorf("ambiguous turn touched tools")
	}
}

func TestHandleTurn_FollowUpUsesActiveCompany(t *testing.T) {
	cm := &fakeChatModel{}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})

	first := a.HandleTurn(context.Background(), &TurnRequest{Message: "Analyze Tesla"}, nil)
	if first.ErrorCode != "" {
		t.Fatalf("research failed: %s", first.ErrorCode)
	}

	cm.intentJSON = `{"intent":"follow_up","companies":[],"ambiguous":false,"candidates":[]}`
	resp := a.HandleTurn(context.Background(), &TurnRequest{SessionID: first.SessionID, Message: "what about its financial health?"}, nil)
	if resp.Intent != model.IntentFollowUp {
		t.Errorf("Intent = %v, want follow_up", resp.Intent)
	}
	if resp.Reply == "" || resp.ErrorCode != "" {
		t.Errorf("follow-up failed: reply=%q code=%s", resp.Reply, resp.ErrorCode)
	}
}

func TestHandleTurn_RefusalSurfacesCode(t *testing.T) {
	cm := &fakeChatModel{refuseReport: true}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})

	resp := a.HandleTurn(context.Background(), &TurnRequest{Message: "Analyze Tesla"}, nil)
	if resp.ErrorCode != "GENERATION_REFUSED" {
		t.Errorf("ErrorCode = %q, want GENERATION_REFUSED", resp.ErrorCode)
	}
	if resp.Reply != refusedReply {
		t.Errorf("Reply = %q", resp.Reply)
	}
	if resp.Plan != nil {
		t.Errorf("refused turn still returned a plan")
	}
}

func TestHandleTurn_MalformedExtractionStillReturnsPlan(t *testing.T) {
	cm := &fakeChatModel{extractFailures: 10}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})

	resp := a.HandleTurn(context.Background(), &TurnRequest{Message: "Analyze Tesla"}, nil)
	if resp.ErrorCode != "MALFORMED_EXTRACTION" {
		t.Fatalf("ErrorCode = %q, want MALFORMED_EXTRACTION", resp.ErrorCode)
	}
	if resp.Plan == nil {
		t.Fatalf("degraded turn returned no plan")
	}
	if content, _ := resp.Plan.Section(model.SectionSWOT); content != model.ExtractionFailed {
		t.Errorf("swot = %q, want placeholder", content)
	}
	if resp.Reply == "" {
		t.Errorf("narrative report should still be returned")
	}
}
