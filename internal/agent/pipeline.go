package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/gg/gson"

	"github.com/iWorld-y/account_radar/pkg/finance"
	"github.com/iWorld-y/account_radar/pkg/logger"
	"github.com/iWorld-y/account_radar/pkg/model"
	"github.com/iWorld-y/account_radar/pkg/search"
)

// extractionRetries 结构化抽取的格式修复重试上限
const extractionRetries = 2

const reportSystemPrompt = `Role: Senior Strategy Consultant at a top-tier advisory firm. You write thorough, professional strategic account plans in Markdown.`

const reportPromptTpl = `Task: Create a COMPREHENSIVE Strategic Account Plan for '%s'.

Sources:
Search results: %s
Financial snapshot: %s

Instructions:
1. Generate a detailed, multi-section report in Markdown.
2. Do NOT include a title page, "Date:", "Prepared by:", or any introductory conversation.
3. Start DIRECTLY with the first header (e.g., # Executive Summary).
4. Sections required, in this order, each as a top-level header:
   - Executive Summary
   - Product & Services Portfolio
   - Market Analysis
   - Financial Health
   - SWOT Analysis
   - Strategic Recommendations
5. If financial data is unavailable, say so explicitly in the Financial Health section instead of inventing numbers.`

const extractSystemPrompt = `You are a Data Extraction Specialist. You convert reports into a single valid JSON object. Output raw JSON only, no markdown fences.`

const extractPromptTpl = `INPUT TEXT:
%s

INSTRUCTIONS:
Convert the report above into a valid JSON object with EXACTLY these keys, all required, values are Markdown strings (empty string if the report has nothing for a section):
{
    "company_name": %q,
    "executive_summary": "...",
    "products_services": "...",
    "market_analysis": "...",
    "financial_health": "...",
    "swot": "...",
    "strategic_recommendations": "..."
}`

const extractFixSuffix = `

Your previous output was not valid JSON with the required keys. Fix the format: output ONLY the raw JSON object, every key present, no trailing text.`

// research 完整研究链路：检索 → 行情 → 两段式合成 → 原子提交
// 任何一步的可恢复故障都降级处理，档案只在全链路完成后写入会话
func (a *Agent) research(ctx context.Context, sess *Session, name string, progress func(string)) (*model.CompanyProfile, error) {
	report := func(msg string) {
		if progress != nil {
			progress(msg)
		}
	}

	// 1. 检索（降级链内部逐后端记录工具日志）
	report(fmt.Sprintf("Searching global sources for %s...", name))
	results, searchErr := a.retrieve(ctx, sess, name)
	if searchErr != nil && !errors.Is(searchErr, search.ErrAllProvidersExhausted) {
		return nil, searchErr
	}
	if errors.Is(searchErr, search.ErrAllProvidersExhausted) {
		// 检索全灭不终止研究，报告会基于模型已有知识生成，溯源为空
		logger.Log.Warnf("公司 [%s] 检索降级链耗尽，溯源将为空", name)
	}

	// 2. 行情快照，拿不到就显式缺席，绝不让它炸掉整条流水线
	report("Analyzing financial markets...")
	snapshot := a.fetchSnapshot(ctx, sess, name, results)

	// 3. Stage 1：叙事报告
	report("Writing comprehensive report (step 1/2)...")
	reportText, err := a.generateReport(ctx, sess, name, results, snapshot)
	if err != nil {
		return nil, err
	}

	// 4. Stage 2：结构化抽取（有界重试，失败降级为占位 JSON）
	report("Extracting structured data (step 2/2)...")
	plan, extractErr := a.extractPlan(ctx, sess, name, reportText)

	// 调用方断连时放弃本轮，禁止半成品进入会话记忆
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	now := time.Now()
	profile := &model.CompanyProfile{
		Canonical:      sess.Resolve(name),
		DisplayName:    name,
		Plan:           plan,
		OriginalReport: reportText,
		CurrentReport:  reportText,
		Snapshot:       snapshot,
		Provenance:     results,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	sess.PutProfile(profile)
	a.archiveProfile(sess, profile)

	return profile, extractErr
}

// retrieve 走搜索降级链并把结果收敛为溯源记录
func (a *Agent) retrieve(ctx context.Context, sess *Session, name string) ([]model.SearchResult, error) {
	query := fmt.Sprintf("%s strategic analysis news", name)
	req := &search.Request{
		Query:      query,
		Topic:      "news",
		MaxResults: a.maxResults,
	}

	resp, err := a.searchFor(sess).Search(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Log.Debugf("检索 [%s] 命中: %s", name, gson.ToString(resp))

	var out []model.SearchResult
	for i, item := range resp.Results {
		content := item.Content
		// 摘要太短时抓取正文补全（尽力而为）
		if len(content) < 500 && a.fetchContent != nil {
			if fetched, ferr := a.fetchContent(item.URL); ferr == nil && len(fetched) > len(content) {
				content = fetched
			}
		}
		if len(content) > 5000 {
			content = content[:5000]
		}
		out = append(out, model.SearchResult{
			Provider:      item.Provider,
			Query:         query,
			Title:         item.Title,
			URL:           item.URL,
			Snippet:       content,
			Rank:          i + 1,
			PublishedDate: item.PublishedDate,
		})
		if len(out) >= 6 {
			break
		}
	}
	return out, nil
}

// fetchSnapshot 解析 ticker 并拉取行情
// 失败一律降级为"未解析"快照并记录原因
func (a *Agent) fetchSnapshot(ctx context.Context, sess *Session, name string, results []model.SearchResult) *model.FinancialSnapshot {
	ticker := finance.GuessTicker(name)
	if ticker == "" {
		ticker = a.lookupTicker(ctx, sess, name)
	}
	if ticker == "" {
		return &model.FinancialSnapshot{
			Resolved: false,
			Reason:   "could not detect ticker",
		}
	}

	start := time.Now()
	snapshot, err := a.finance.Snapshot(ctx, ticker)
	if err != nil {
		sess.ToolLog().Record("finance:"+a.financeName, ticker, false, err.Error(), start)
		logger.Log.Warnf("行情获取失败 [%s]: %v", ticker, err)
		return &model.FinancialSnapshot{
			Ticker:   ticker,
			Resolved: false,
			Reason:   err.Error(),
		}
	}
	sess.ToolLog().Record("finance:"+a.financeName, ticker, true, fmt.Sprintf("price=%.2f %s", snapshot.Price, snapshot.Currency), start)
	return snapshot
}

// lookupTicker 搜索兜底解析 ticker，找不到返回空串
func (a *Agent) lookupTicker(ctx context.Context, sess *Session, name string) string {
	resp, err := a.searchFor(sess).Search(ctx, &search.Request{
		Query:      fmt.Sprintf("%s stock ticker symbol", name),
		Topic:      "general",
		MaxResults: 1,
	})
	if err != nil || len(resp.Results) == 0 {
		return ""
	}
	return finance.ExtractTicker(resp.Results[0].Title)
}

// generateReport Stage 1：基于检索结果与行情生成叙事报告
func (a *Agent) generateReport(ctx context.Context, sess *Session, name string, results []model.SearchResult, snapshot *model.FinancialSnapshot) (string, error) {
	searchJSON, _ := json.Marshal(results)
	if len(searchJSON) > 3000 {
		searchJSON = searchJSON[:3000]
	}
	finJSON, _ := json.Marshal(snapshot)

	prompt := fmt.Sprintf(reportPromptTpl, name, string(searchJSON), string(finJSON))

	start := time.Now()
	text, err := a.llm.generate(ctx, reportSystemPrompt, prompt)
	sess.ToolLog().Record("llm:report", name, err == nil, errDetail(err), start)
	if err != nil {
		return "", err
	}
	return text, nil
}

// extractPlan Stage 2：把叙事报告抽取为固定六节 JSON
// 重试耗尽后返回占位计划与 ErrMalformedExtraction，调用方照常提交档案
func (a *Agent) extractPlan(ctx context.Context, sess *Session, name, reportText string) (*model.AccountPlan, error) {
	input := reportText
	if len(input) > 20000 {
		input = input[:20000]
	}
	prompt := fmt.Sprintf(extractPromptTpl, input, name)

	var lastErr error
	for attempt := 0; attempt <= extractionRetries; attempt++ {
		p := prompt
		if attempt > 0 {
			p += extractFixSuffix
		}

		start := time.Now()
		raw, err := a.llm.generate(ctx, extractSystemPrompt, p)
		sess.ToolLog().Record("llm:extract", name, err == nil, errDetail(err), start)
		if err != nil {
			if errors.Is(err, ErrGenerationRefused) {
				return fallbackPlan(name), fmt.Errorf("extraction refused: %w", ErrMalformedExtraction)
			}
			lastErr = err
			continue
		}

		plan, perr := parsePlan(raw, name)
		if perr != nil {
			logger.Log.Warnf("结构化抽取第 %d 次不合法: %v", attempt+1, perr)
			lastErr = perr
			continue
		}
		return plan, nil
	}

	logger.Log.Errorf("结构化抽取重试耗尽 [%s]: %v", name, lastErr)
	return fallbackPlan(name), fmt.Errorf("%v: %w", lastErr, ErrMalformedExtraction)
}

// parsePlan 解析并校验六节齐全，校验只发生在这一处入口
func parsePlan(raw, name string) (*model.AccountPlan, error) {
	obj := extractJSONObject(raw)
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in output")
	}

	// 先用 map 校验 key 是否齐全：空串允许，缺 key 不允许
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &keys); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	for _, key := range model.SectionKeys() {
		if _, ok := keys[key]; !ok {
			return nil, fmt.Errorf("missing required key %q", key)
		}
	}

	var plan model.AccountPlan
	if err := json.Unmarshal([]byte(obj), &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	if plan.CompanyName == "" {
		plan.CompanyName = name
	}
	return &plan, nil
}

// fallbackPlan 抽取失败时的占位计划：六节齐全，内容显式标记失败
func fallbackPlan(name string) *model.AccountPlan {
	p := &model.AccountPlan{CompanyName: name}
	for _, key := range model.SectionKeys() {
		p.SetSection(key, model.ExtractionFailed)
	}
	return p
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// sectionHeadings 报告必须包含的六个标题（结构等价性校验用）
func sectionHeadings() []string {
	out := make([]string, 0, 6)
	for _, key := range model.SectionKeys() {
		out = append(out, model.SectionTitles[key])
	}
	return out
}

// hasAllSections 粗校验报告文本是否覆盖全部六节
func hasAllSections(report string) bool {
	for _, h := range sectionHeadings() {
		if !strings.Contains(report, h) {
			return false
		}
	}
	return true
}
