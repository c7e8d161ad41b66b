package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iWorld-y/account_radar/pkg/logger"
	"github.com/iWorld-y/account_radar/pkg/model"
)

const compareSystemPrompt = `You are a Senior Strategy Consultant. You compare companies objectively from the evidence given. Output JSON only, no markdown fences.`

const comparePromptTpl = `Company profiles (JSON, alphabetical order):
%s

Task: For each company, name its key differentiators versus the others, then write a short comparative narrative.

Return valid JSON ONLY:
{
    "differentiators": {"<company canonical name>": ["..."], ...},
    "narrative": "..."
}
Every company above must appear as a key in "differentiators".`

// compareRetries 对比差异化分析的格式重试上限
const compareRetries = 2

// compare 多公司对比：缺档案的公司先并发补齐研究，再合成对比结果
// 指标表为确定性拼装，叙事与差异化要点走 LLM
func (a *Agent) compare(ctx context.Context, sess *Session, names []string, progress func(string)) (*model.ComparisonResult, error) {
	// 请求序去重（大小写不敏感），display 与 ordered 逐位对应
	var ordered, display []string
	seen := make(map[string]bool)
	for _, n := range names {
		canon := sess.Resolve(n)
		if canon == "" || seen[canon] {
			continue
		}
		seen[canon] = true
		ordered = append(ordered, canon)
		display = append(display, n)
	}
	if len(ordered) < 2 {
		return nil, fmt.Errorf("compare needs at least two distinct companies")
	}

	// 缺口并发补齐，任何一家失败则整次对比失败
	type job struct {
		canon string
		name  string
	}
	var missing []job
	for i, canon := range ordered {
		if _, ok := sess.Profile(canon); !ok {
			missing = append(missing, job{canon: canon, name: display[i]})
		}
	}

	if len(missing) > 0 {
		if progress != nil {
			progress(fmt.Sprintf("Researching %d companies first...", len(missing)))
		}
		var wg sync.WaitGroup
		var mu sync.Mutex
		var firstErr error
		for _, j := range missing {
			wg.Add(1)
			go func(j job) {
				defer wg.Done()
				// research 内部只在成功后 PutProfile；并发研究共用会话日志
				_, err := a.research(ctx, sess, j.name, nil)
				if err != nil && ErrorCode(err) != "MALFORMED_EXTRACTION" {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("research %s: %w", j.name, err)
					}
					mu.Unlock()
				}
			}(j)
		}
		wg.Wait()
		if firstErr != nil {
			return nil, firstErr
		}
	}

	profiles := make(map[string]*model.CompanyProfile, len(ordered))
	for _, canon := range ordered {
		p, ok := sess.Profile(canon)
		if !ok {
			return nil, fmt.Errorf("%s: %w", canon, ErrCompanyNotFound)
		}
		profiles[canon] = p
	}

	if progress != nil {
		progress("Building comparison...")
	}

	metrics := buildMetricTable(ordered, profiles)

	diffs, narrative, err := a.generateComparison(ctx, sess, ordered, profiles)
	if err != nil {
		return nil, err
	}

	result := &model.ComparisonResult{
		Companies:       ordered,
		Metrics:         metrics,
		Differentiators: diffs,
		Narrative:       narrative,
	}
	if a.store != nil {
		if serr := a.store.SaveComparison(sess.ID, result); serr != nil {
			logger.Log.Errorf("对比结果归档失败: %v", serr)
		}
	}
	return result, nil
}

// buildMetricTable 从已有档案确定性拼装对比指标表，缺失值统一 "n/a"
func buildMetricTable(ordered []string, profiles map[string]*model.CompanyProfile) []model.MetricRow {
	rows := []model.MetricRow{
		{Metric: "Ticker", Values: map[string]string{}},
		{Metric: "Price", Values: map[string]string{}},
		{Metric: "Market Cap", Values: map[string]string{}},
		{Metric: "Currency", Values: map[string]string{}},
		{Metric: "Financial Health", Values: map[string]string{}},
		{Metric: "Market Position", Values: map[string]string{}},
	}

	for _, canon := range ordered {
		p := profiles[canon]
		ticker, price, mcap, currency := "n/a", "n/a", "n/a", "n/a"
		if snap := p.Snapshot; snap != nil && snap.Resolved {
			ticker = snap.Ticker
			price = fmt.Sprintf("%.2f", snap.Price)
			if snap.MarketCap > 0 {
				mcap = formatMarketCap(snap.MarketCap)
			}
			currency = snap.Currency
		}
		rows[0].Values[canon] = ticker
		rows[1].Values[canon] = price
		rows[2].Values[canon] = mcap
		rows[3].Values[canon] = currency
		rows[4].Values[canon] = sectionExcerpt(p.Plan, model.SectionFinancialHealth)
		rows[5].Values[canon] = sectionExcerpt(p.Plan, model.SectionMarketAnalysis)
	}
	return rows
}

// sectionExcerpt 取小节摘录用于指标表，过长截断
func sectionExcerpt(plan *model.AccountPlan, key string) string {
	if plan == nil {
		return "n/a"
	}
	content, ok := plan.Section(key)
	if !ok || strings.TrimSpace(content) == "" || content == model.ExtractionFailed {
		return "n/a"
	}
	content = strings.TrimSpace(content)
	if len(content) > 200 {
		content = content[:200] + "..."
	}
	return content
}

func formatMarketCap(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// generateComparison 调 LLM 产出差异化要点与叙事
// 档案按规范名字典序序列化，保证 A,B 与 B,A 输入完全一致
func (a *Agent) generateComparison(ctx context.Context, sess *Session, ordered []string, profiles map[string]*model.CompanyProfile) (map[string][]string, string, error) {
	sorted := make([]string, len(ordered))
	copy(sorted, ordered)
	sort.Strings(sorted)

	type brief struct {
		Company  string                  `json:"company"`
		Plan     *model.AccountPlan      `json:"plan"`
		Snapshot *model.FinancialSnapshot `json:"snapshot"`
	}
	briefs := make([]brief, 0, len(sorted))
	for _, canon := range sorted {
		p := profiles[canon]
		briefs = append(briefs, brief{Company: canon, Plan: p.Plan, Snapshot: p.Snapshot})
	}
	payload, _ := json.Marshal(briefs)
	if len(payload) > 24000 {
		payload = payload[:24000]
	}

	prompt := fmt.Sprintf(comparePromptTpl, string(payload))
	request := strings.Join(sorted, " vs ")

	var lastErr error
	for attempt := 0; attempt <= compareRetries; attempt++ {
		start := time.Now()
		raw, err := a.llm.generate(ctx, compareSystemPrompt, prompt)
		sess.ToolLog().Record("llm:compare", request, err == nil, errDetail(err), start)
		if err != nil {
			return nil, "", err
		}

		var out struct {
			Differentiators map[string][]string `json:"differentiators"`
			Narrative       string              `json:"narrative"`
		}
		if jerr := json.Unmarshal([]byte(extractJSONObject(raw)), &out); jerr != nil {
			logger.Log.Warnf("对比输出第 %d 次不合法: %v", attempt+1, jerr)
			lastErr = jerr
			continue
		}
		if out.Differentiators == nil {
			out.Differentiators = map[string][]string{}
		}
		return out.Differentiators, out.Narrative, nil
	}
	return nil, "", fmt.Errorf("%v: %w", lastErr, ErrMalformedExtraction)
}
