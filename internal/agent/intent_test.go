package agent

import (
	"context"
	"testing"

	"github.com/iWorld-y/account_radar/pkg/model"
)

func TestClassify_Research(t *testing.T) {
	cm := &fakeChatModel{intentJSON: `{"intent":"research","companies":["Tesla"],"ambiguous":false,"candidates":[]}`}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sess := NewSession("")

	res := a.classify(context.Background(), sess, "Analyze Tesla")
	if res.Intent != model.IntentResearch {
		t.Errorf("Intent = %v, want research", res.Intent)
	}
	if len(res.Companies) != 1 || res.Companies[0] != "Tesla" {
		t.Errorf("Companies = %v, want [Tesla]", res.Companies)
	}
}

func TestClassify_AmbiguousCarriesCandidates(t *testing.T) {
	cm := &fakeChatModel{intentJSON: `{"intent":"research","companies":["Apple"],"ambiguous":true,"candidates":["Apple Inc. (technology)","Apple Bank (banking)"]}`}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sess := NewSession("")

	res := a.classify(context.Background(), sess, "Tell me about Apple")
	if !res.Ambiguous {
		t.Fatalf("Ambiguous = false, want true")
	}
	if len(res.Candidates) != 2 {
		t.Errorf("Candidates = %v, want 2 entries", res.Candidates)
	}
}

func TestApplyIntentPolicy_FollowUpWithoutContext(t *testing.T) {
	sess := NewSession("")

	res := &model.IntentResult{Intent: model.IntentFollowUp}
	applyIntentPolicy(res, sess)
	if res.Intent != model.IntentOffTopic {
		t.Errorf("Intent = %v, want off_topic", res.Intent)
	}

	res = &model.IntentResult{Intent: model.IntentFollowUp, Companies: []string{"Ford"}}
	applyIntentPolicy(res, sess)
	if res.Intent != model.IntentResearch {
		t.Errorf("Intent = %v, want research", res.Intent)
	}
}

func TestApplyIntentPolicy_CompareNeedsTwo(t *testing.T) {
	sess := NewSession("")
	res := &model.IntentResult{Intent: model.IntentCompare, Companies: []string{"Ford"}}
	applyIntentPolicy(res, sess)
	if res.Intent != model.IntentResearch {
		t.Errorf("Intent = %v, want research downgrade", res.Intent)
	}
}

func TestApplyIntentPolicy_EmptyResearchIsOffTopic(t *testing.T) {
	sess := NewSession("")
	res := &model.IntentResult{Intent: model.IntentResearch}
	applyIntentPolicy(res, sess)
	if res.Intent != model.IntentOffTopic {
		t.Errorf("Intent = %v, want off_topic", res.Intent)
	}
}

func TestClassify_LLMFailureDegrades(t *testing.T) {
	cm := &fakeChatModel{intentJSON: "not json at all"}
	a := newTestAgent(cm, &fakeSearcher{}, &fakeFinance{})
	sess := NewSession("")

	// 坏 JSON 按 research 处理，但无实体无上文再降级 off_topic
	res := a.classify(context.Background(), sess, "whatever")
	if res.Intent != model.IntentOffTopic {
		t.Errorf("Intent = %v, want off_topic", res.Intent)
	}
}
