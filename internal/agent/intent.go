package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iWorld-y/account_radar/pkg/logger"
	"github.com/iWorld-y/account_radar/pkg/model"
)

const intentSystemPrompt = `You are an intent classifier for a corporate strategy research assistant. Output JSON only.`

const intentPromptTpl = `Analyze the user message below in the context of an ongoing research conversation.

User message: %q
Last researched company (empty if none): %q
Last intent (empty if none): %q

Return valid JSON ONLY, no markdown:
{
    "intent": "research" | "follow_up" | "compare" | "off_topic" | "greeting",
    "companies": ["company names mentioned, in order"],
    "ambiguous": false,
    "candidates": []
}

Rules:
- "research": the user asks to analyze or learn about one company.
- "follow_up": the user refers back to the previously discussed company ("its revenue", "what about their competitors").
- "compare": the user asks to compare two or more companies.
- "off_topic": nothing to do with companies or corporate strategy.
- "greeting": a greeting or capability question.
- If a mentioned name maps to several unrelated real-world organizations and the message gives no way to tell them apart, set "ambiguous": true and list at least two plausible candidates in "candidates" (e.g. "Apple Inc. (technology)", "Apple Bank (banking)"). Do not guess.`

// classify 调用 LLM 做意图识别，再套用本地降级策略
// 分类调用不计入工具日志，日志只覆盖检索、行情与合成类调用
func (a *Agent) classify(ctx context.Context, sess *Session, utterance string) *model.IntentResult {
	prompt := fmt.Sprintf(intentPromptTpl, utterance, sess.LastActive(), sess.LastIntent())

	raw, err := a.llm.generate(ctx, intentSystemPrompt, prompt)
	if err != nil {
		// 分类失败不阻断：有上文按 research 继续，没有按 off_topic 兜底
		logger.Log.Errorf("意图识别失败: %v", err)
		if sess.LastActive() != "" {
			return &model.IntentResult{Intent: model.IntentFollowUp}
		}
		return &model.IntentResult{Intent: model.IntentOffTopic}
	}

	var res model.IntentResult
	if jerr := json.Unmarshal([]byte(extractJSONObject(raw)), &res); jerr != nil {
		logger.Log.Warnf("意图识别输出不是合法 JSON，按 research 处理: %v", jerr)
		res = model.IntentResult{Intent: model.IntentResearch}
	}

	applyIntentPolicy(&res, sess)
	return &res
}

// applyIntentPolicy 本地兜底策略，约束 LLM 分类结果
//   - follow_up 依赖已有活跃公司，否则降级为 research（带实体）或 off_topic
//   - compare 至少需要两个实体，不足降级为 research
//   - 无实体且无上文的 research 视为 off_topic
func applyIntentPolicy(res *model.IntentResult, sess *Session) {
	switch res.Intent {
	case model.IntentFollowUp:
		if sess.LastActive() == "" {
			if len(res.Companies) > 0 {
				res.Intent = model.IntentResearch
			} else {
				res.Intent = model.IntentOffTopic
			}
		}
	case model.IntentCompare:
		if len(res.Companies) < 2 {
			res.Intent = model.IntentResearch
		}
	case model.IntentResearch:
		if len(res.Companies) == 0 && sess.LastActive() == "" && !res.Ambiguous {
			res.Intent = model.IntentOffTopic
		}
	}

	// 澄清路径只对会触发检索的意图有意义
	if res.Ambiguous && res.Intent != model.IntentResearch && res.Intent != model.IntentCompare {
		res.Ambiguous = false
		res.Candidates = nil
	}
}
