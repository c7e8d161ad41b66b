package agent

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iWorld-y/account_radar/pkg/model"
	"github.com/iWorld-y/account_radar/pkg/toollog"
)

// Session 单个用户的会话状态
// mu 串行化整轮处理；stateMu 保护内部状态，供轮内并发研究使用
type Session struct {
	ID string

	mu sync.Mutex

	stateMu    sync.Mutex
	profiles   map[string]*model.CompanyProfile
	aliases    map[string]string // 别名 -> 规范名
	order      []string          // 规范名的插入顺序
	lastActive string
	lastIntent model.Intent
	tlog       *toollog.Log
}

// NewSession 创建会话，工具日志随会话生命周期存在
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:       id,
		profiles: make(map[string]*model.CompanyProfile),
		aliases:  make(map[string]string),
		tlog:     toollog.New(),
	}
}

// ToolLog 会话的只追加工具日志
func (s *Session) ToolLog() *toollog.Log {
	return s.tlog
}

// legalSuffixes 规范化时剥掉的常见公司后缀
var legalSuffixes = []string{"inc", "inc.", "corp", "corp.", "corporation", "ltd", "ltd.", "llc", "co", "co.", "company", "plc", "group"}

// CanonicalName 公司名规范化：小写、去空白、去法律后缀与 .com 尾巴
// "Amazon" 与 "Amazon.com Inc" 归并到同一个档案 key
func CanonicalName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, ",", " ")

	fields := strings.Fields(n)
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		matched := false
		for _, suf := range legalSuffixes {
			if last == suf {
				fields = fields[:len(fields)-1]
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	n = strings.Join(fields, " ")
	n = strings.TrimSuffix(n, ".com")
	return strings.TrimSpace(n)
}

// Resolve 将任意公司叫法解析为规范名，并记住这个别名
func (s *Session) Resolve(name string) string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	key := strings.ToLower(strings.TrimSpace(name))
	if canon, ok := s.aliases[key]; ok {
		return canon
	}
	canon := CanonicalName(name)
	s.aliases[key] = canon
	return canon
}

// Profile 取某公司的档案
func (s *Session) Profile(canonical string) (*model.CompanyProfile, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	p, ok := s.profiles[canonical]
	return p, ok
}

// PutProfile 全量提交一份档案（一轮研究的原子提交点）
func (s *Session) PutProfile(p *model.CompanyProfile) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if _, exists := s.profiles[p.Canonical]; !exists {
		s.order = append(s.order, p.Canonical)
	}
	s.profiles[p.Canonical] = p
	s.lastActive = p.Canonical
}

// Companies 已研究公司的规范名，按首次研究顺序
func (s *Session) Companies() []string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// LastActive 最近一次研究/追问命中的公司，空串表示尚无
func (s *Session) LastActive() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastActive
}

// SetLastActive 更新当前活跃公司
func (s *Session) SetLastActive(canonical string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.lastActive = canonical
}

// LastIntent 上一轮的意图
func (s *Session) LastIntent() model.Intent {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastIntent
}

// SetLastIntent 记录本轮意图
func (s *Session) SetLastIntent(i model.Intent) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.lastIntent = i
}

// Manager 会话注册表
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Get 取已有会话
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate 取会话，不存在则新建（首轮输入即会话构造点）
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := NewSession(id)
	m.sessions[s.ID] = s
	return s
}
