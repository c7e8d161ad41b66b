package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iWorld-y/account_radar/pkg/logger"
	"github.com/iWorld-y/account_radar/pkg/model"
)

const regenerateSystemPrompt = `Role: Senior Strategy Consultant. You rewrite strategic account plans in Markdown from structured data. The structured data is the single source of truth.`

const regeneratePromptTpl = `The structured account plan below has just been updated by an analyst. Rewrite the FULL narrative report to reflect it exactly.

Structured plan (ground truth, JSON):
%s

Instructions:
1. Markdown only, no title page, no "Date:", no introductory conversation.
2. Start DIRECTLY with the first header.
3. Same six top-level headers, in this order:
   - Executive Summary
   - Product & Services Portfolio
   - Market Analysis
   - Financial Health
   - SWOT Analysis
   - Strategic Recommendations
4. Every section's content must be consistent with the structured plan. Do not reintroduce information the update removed.`

// EditSection 定向改写某公司计划的一个小节并重算叙事报告
// 校验先于一切副作用：非法小节键不会触碰档案
func (a *Agent) EditSection(ctx context.Context, sessionID, company, section, content string) (*model.CompanyProfile, error) {
	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrCompanyNotFound)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, known := model.SectionTitles[section]; !known {
		return nil, fmt.Errorf("section %q: %w", section, ErrInvalidEditField)
	}

	canon := sess.Resolve(company)
	profile, ok := sess.Profile(canon)
	if !ok {
		return nil, fmt.Errorf("company %q: %w", company, ErrCompanyNotFound)
	}

	previous, _ := profile.Plan.Section(section)
	profile.Plan.SetSection(section, content)

	// 叙事报告从编辑后的结构化计划整体重算，结构化数据是唯一事实来源
	regenerated, err := a.regenerateReport(ctx, sess, profile)
	if err != nil {
		// 重算失败回滚小节，档案保持编辑前状态
		profile.Plan.SetSection(section, previous)
		return nil, err
	}

	profile.CurrentReport = regenerated
	profile.UpdatedAt = time.Now()
	profile.Edits = append(profile.Edits, model.EditRecord{
		Section:   section,
		Previous:  previous,
		Content:   content,
		Timestamp: profile.UpdatedAt,
	})
	sess.SetLastActive(canon)
	a.archiveProfile(sess, profile)

	logger.Log.Infof("公司 [%s] 小节 [%s] 已改写并重算报告", canon, section)
	return profile, nil
}

// regenerateReport 从结构化计划重写完整叙事报告（不改 OriginalReport）
func (a *Agent) regenerateReport(ctx context.Context, sess *Session, profile *model.CompanyProfile) (string, error) {
	payload, _ := json.Marshal(profile.Plan)
	prompt := fmt.Sprintf(regeneratePromptTpl, string(payload))

	start := time.Now()
	text, err := a.llm.generate(ctx, regenerateSystemPrompt, prompt)
	sess.ToolLog().Record("llm:report", profile.Canonical, err == nil, errDetail(err), start)
	if err != nil {
		return "", err
	}
	return text, nil
}

// archiveProfile 可选的数据库归档，失败只记日志不影响主流程
func (a *Agent) archiveProfile(sess *Session, profile *model.CompanyProfile) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveProfile(sess.ID, profile); err != nil {
		logger.Log.Errorf("公司档案归档失败 [%s]: %v", profile.Canonical, err)
	}
}
