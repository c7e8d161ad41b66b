package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/account_radar/pkg/config"
	"github.com/iWorld-y/account_radar/pkg/export"
	"github.com/iWorld-y/account_radar/pkg/finance"
	"github.com/iWorld-y/account_radar/pkg/logger"
	"github.com/iWorld-y/account_radar/pkg/model"
	"github.com/iWorld-y/account_radar/pkg/search"
	"github.com/iWorld-y/account_radar/pkg/storage"
	"github.com/iWorld-y/account_radar/pkg/toollog"
)

const (
	greetingReply = "Hello! I am your Enterprise Research Agent. Ask me to 'Analyze Tesla' or 'Compare Ford and GM'."
	offTopicReply = "I specialize in corporate strategy. Please ask me to research a company."
	refusedReply  = "I was unable to generate that report due to content restrictions. Please try a different request."
)

const answerSystemPrompt = `You are an Enterprise Research Agent answering follow-up questions about a company you have already researched. Answer from the report below; if the report does not cover it, say so.`

const answerPromptTpl = `Current report for %s:
%s

Follow-up question: %s

Answer concisely in Markdown.`

// Agent 会话控制器：意图识别、研究流水线、对比引擎与计划编辑的编排者
type Agent struct {
	cfg      *config.Config
	llm      *llmClient
	chain    *search.Chain
	finance  finance.Provider
	store    *storage.Storage
	sessions *Manager

	financeName string
	maxResults  int

	// fetchContent 正文抓取钩子，测试可替换；nil 则跳过补全
	fetchContent func(rawURL string) (string, error)
}

// New 组装控制器，store 可为 nil（不归档）
// 限流器按配置的 RPM/QPS 构造，未配置则不限流
func New(cfg *config.Config, cm einomodel.ChatModel, chain *search.Chain, fp finance.Provider, store *storage.Storage) *Agent {
	maxResults := cfg.Search.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	financeName := cfg.Finance.Provider
	if financeName == "" {
		financeName = "yahoo"
	}

	var limiter *rate.Limiter
	if cfg.Concurrency.RPM > 0 {
		burst := cfg.Concurrency.QPS
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.Concurrency.RPM)/60.0), burst)
	}

	return &Agent{
		cfg:          cfg,
		llm:          newLLMClient(cm, limiter),
		chain:        chain,
		finance:      fp,
		store:        store,
		sessions:     NewManager(),
		financeName:  financeName,
		maxResults:   maxResults,
		fetchContent: fetchReadable,
	}
}

// searchFor 返回绑定了会话工具日志的搜索链
func (a *Agent) searchFor(sess *Session) search.Searcher {
	return a.chain.WithLog(sess.ToolLog())
}

// TurnRequest 一轮对话的输入
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// TurnResponse 一轮对话的输出
// 故障以 ErrorCode 形式出现，调用方拿到的永远是结构化应答
type TurnResponse struct {
	SessionID  string                  `json:"session_id"`
	Intent     model.Intent            `json:"intent"`
	Reply      string                  `json:"reply"`
	Plan       *model.AccountPlan      `json:"plan,omitempty"`
	Comparison *model.ComparisonResult `json:"comparison,omitempty"`
	Candidates []string                `json:"candidates,omitempty"`
	ToolCalls  []toollog.Entry         `json:"tool_calls"`
	ErrorCode  string                  `json:"error_code,omitempty"`
}

// HandleTurn 处理一轮用户输入
// 同一会话内严格串行；ToolCalls 仅含本轮新增的工具调用记录
func (a *Agent) HandleTurn(ctx context.Context, req *TurnRequest, progress func(string)) *TurnResponse {
	sess := a.sessions.GetOrCreate(req.SessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	cursor := sess.ToolLog().Len()
	resp := &TurnResponse{SessionID: sess.ID}

	utterance := strings.TrimSpace(req.Message)
	if utterance == "" {
		resp.Intent = model.IntentOffTopic
		resp.Reply = offTopicReply
		resp.ToolCalls = sess.ToolLog().Since(cursor)
		return resp
	}

	intent := a.classify(ctx, sess, utterance)
	resp.Intent = intent.Intent
	logger.Log.Infof("会话 [%s] 意图=%s 实体=%v 歧义=%v", sess.ID, intent.Intent, intent.Companies, intent.Ambiguous)

	switch intent.Intent {
	case model.IntentGreeting:
		resp.Reply = greetingReply

	case model.IntentOffTopic:
		resp.Reply = offTopicReply

	default:
		if intent.Ambiguous {
			resp.Candidates = intent.Candidates
			resp.ErrorCode = ErrorCode(ErrAmbiguousEntity)
			resp.Reply = clarifyReply(intent.Candidates)
			break
		}

		switch intent.Intent {
		case model.IntentResearch:
			a.handleResearch(ctx, sess, intent, utterance, progress, resp)
		case model.IntentFollowUp:
			a.handleFollowUp(ctx, sess, intent, utterance, resp)
		case model.IntentCompare:
			a.handleCompare(ctx, sess, intent, progress, resp)
		}
	}

	sess.SetLastIntent(resp.Intent)
	resp.ToolCalls = sess.ToolLog().Since(cursor)
	a.archiveToolCalls(sess, resp.ToolCalls)
	return resp
}

// handleResearch 单公司研究分支：缓存命中直接复用，未命中走完整流水线
func (a *Agent) handleResearch(ctx context.Context, sess *Session, intent *model.IntentResult, utterance string, progress func(string), resp *TurnResponse) {
	name := utterance
	if len(intent.Companies) > 0 {
		name = intent.Companies[0]
	}

	canon := sess.Resolve(name)
	if profile, ok := sess.Profile(canon); ok {
		// 会话内缓存命中：零外部调用
		sess.SetLastActive(canon)
		resp.Plan = profile.Plan
		resp.Reply = profile.CurrentReport
		logger.Log.Infof("公司 [%s] 命中会话缓存，直接返回", canon)
		return
	}

	profile, err := a.research(ctx, sess, name, progress)
	if err != nil {
		code := ErrorCode(err)
		if code == "MALFORMED_EXTRACTION" && profile != nil {
			// 抽取失败但报告可用：档案照常提交，占位计划随错误码返回
			resp.Plan = profile.Plan
			resp.Reply = profile.CurrentReport
			resp.ErrorCode = code
			return
		}
		a.fillFailure(resp, err)
		return
	}
	resp.Plan = profile.Plan
	resp.Reply = profile.CurrentReport
}

// handleFollowUp 追问分支：基于活跃公司的当前报告作答
func (a *Agent) handleFollowUp(ctx context.Context, sess *Session, intent *model.IntentResult, utterance string, resp *TurnResponse) {
	canon := sess.LastActive()
	if len(intent.Companies) > 0 {
		if c := sess.Resolve(intent.Companies[0]); c != "" {
			if _, ok := sess.Profile(c); ok {
				canon = c
			}
		}
	}

	profile, ok := sess.Profile(canon)
	if !ok {
		a.fillFailure(resp, fmt.Errorf("%q: %w", canon, ErrCompanyNotFound))
		return
	}
	sess.SetLastActive(canon)

	report := profile.CurrentReport
	if len(report) > 20000 {
		report = report[:20000]
	}
	prompt := fmt.Sprintf(answerPromptTpl, profile.DisplayName, report, utterance)

	start := time.Now()
	answer, err := a.llm.generate(ctx, answerSystemPrompt, prompt)
	sess.ToolLog().Record("llm:answer", canon, err == nil, errDetail(err), start)
	if err != nil {
		a.fillFailure(resp, err)
		return
	}
	resp.Plan = profile.Plan
	resp.Reply = answer
}

// handleCompare 多公司对比分支
func (a *Agent) handleCompare(ctx context.Context, sess *Session, intent *model.IntentResult, progress func(string), resp *TurnResponse) {
	result, err := a.compare(ctx, sess, intent.Companies, progress)
	if err != nil {
		a.fillFailure(resp, err)
		return
	}
	resp.Comparison = result
	resp.Reply = result.Narrative
}

// fillFailure 把分类错误写进应答：错误码 + 可读回复
func (a *Agent) fillFailure(resp *TurnResponse, err error) {
	code := ErrorCode(err)
	resp.ErrorCode = code
	logger.Log.Errorf("本轮处理失败 [%s]: %v", code, err)

	switch code {
	case "GENERATION_REFUSED":
		resp.Reply = refusedReply
	case "ALL_PROVIDERS_EXHAUSTED":
		resp.Reply = "All search providers are currently unavailable. Please try again later."
	case "COMPANY_NOT_FOUND":
		resp.Reply = "I have not researched that company in this session yet. Ask me to analyze it first."
	default:
		resp.Reply = "Something went wrong while processing that request. Please try again."
	}
}

func clarifyReply(candidates []string) string {
	if len(candidates) == 0 {
		return "That name could refer to several organizations. Which one do you mean?"
	}
	return fmt.Sprintf("That name could refer to several organizations: %s. Which one do you mean?", strings.Join(candidates, "; "))
}

// archiveToolCalls 工具调用增量归档（可选）
func (a *Agent) archiveToolCalls(sess *Session, entries []toollog.Entry) {
	if a.store == nil || len(entries) == 0 {
		return
	}
	if err := a.store.SaveToolEntries(sess.ID, entries); err != nil {
		logger.Log.Errorf("工具日志归档失败: %v", err)
	}
}

// Plan 取某会话中某公司的档案
func (a *Agent) Plan(sessionID, company string) (*model.CompanyProfile, error) {
	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrCompanyNotFound)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	canon := sess.Resolve(company)
	profile, ok := sess.Profile(canon)
	if !ok {
		return nil, fmt.Errorf("company %q: %w", company, ErrCompanyNotFound)
	}
	return profile, nil
}

// Companies 某会话已研究公司列表
func (a *Agent) Companies(sessionID string) []string {
	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Companies()
}

// ToolCalls 某会话 after 游标之后的工具调用日志，after 为 0 返回全部
func (a *Agent) ToolCalls(sessionID string, after int) []toollog.Entry {
	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	return sess.ToolLog().Since(after)
}

// Export 导出某公司的报告 HTML，variant 区分初版与当前版
func (a *Agent) Export(sessionID, company string, variant export.Variant) ([]byte, error) {
	profile, err := a.Plan(sessionID, company)
	if err != nil {
		return nil, err
	}
	return export.Render(profile, variant)
}

// fetchReadable 抓取并抽取网页正文，失败返回错误由调用方忽略
func fetchReadable(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromURL(u.String(), 10*time.Second)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}
