package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/account_radar/internal/agent"
	"github.com/iWorld-y/account_radar/pkg/export"
	"github.com/iWorld-y/account_radar/pkg/model"
	"github.com/iWorld-y/account_radar/pkg/toollog"
)

// ChatService 对外服务层，HTTP 层的唯一入口
type ChatService struct {
	agent *agent.Agent
	log   *log.Helper
}

func NewChatService(a *agent.Agent, logger log.Logger) *ChatService {
	return &ChatService{
		agent: a,
		log:   log.NewHelper(logger),
	}
}

// Chat 处理一轮对话
func (s *ChatService) Chat(ctx context.Context, req *agent.TurnRequest) *agent.TurnResponse {
	s.log.WithContext(ctx).Infof("chat turn: session=%s len=%d", req.SessionID, len(req.Message))
	resp := s.agent.HandleTurn(ctx, req, nil)
	if resp.ErrorCode != "" {
		s.log.WithContext(ctx).Warnf("chat turn ended with code %s", resp.ErrorCode)
	}
	return resp
}

// EditRequest 小节编辑请求
type EditRequest struct {
	SessionID string `json:"session_id"`
	Company   string `json:"company"`
	Section   string `json:"section"`
	Content   string `json:"content"`
}

// Edit 改写某公司计划的一个小节并重算报告
func (s *ChatService) Edit(ctx context.Context, req *EditRequest) (*model.CompanyProfile, error) {
	return s.agent.EditSection(ctx, req.SessionID, req.Company, req.Section, req.Content)
}

// Plan 取某公司的完整档案
func (s *ChatService) Plan(sessionID, company string) (*model.CompanyProfile, error) {
	return s.agent.Plan(sessionID, company)
}

// Companies 会话内已研究公司
func (s *ChatService) Companies(sessionID string) []string {
	return s.agent.Companies(sessionID)
}

// ToolCalls 会话的工具日志，after 为增量拉取游标
func (s *ChatService) ToolCalls(sessionID string, after int) []toollog.Entry {
	return s.agent.ToolCalls(sessionID, after)
}

// Export 导出报告 HTML
func (s *ChatService) Export(sessionID, company string, variant export.Variant) ([]byte, error) {
	return s.agent.Export(sessionID, company, variant)
}
