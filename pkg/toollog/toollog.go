package toollog

import (
	"sync"
	"time"
)

// Entry 一次外部调用的审计记录，写入后不可变
type Entry struct {
	Provider  string    `json:"provider"`
	Request   string    `json:"request"`
	OK        bool      `json:"ok"`
	Detail    string    `json:"detail,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Log 只追加的调用日志，支持并发写入
// 同一会话内条目顺序一经写入不再变化，也不会被截断
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// New 创建空日志
func New() *Log {
	return &Log{}
}

// Append 追加一条记录，每条记录原子写入
func (l *Log) Append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Record 以开始时间计算耗时并追加一条记录
func (l *Log) Record(provider, request string, ok bool, detail string, start time.Time) {
	l.Append(Entry{
		Provider:  provider,
		Request:   truncate(request, 300),
		OK:        ok,
		Detail:    truncate(detail, 300),
		LatencyMS: time.Since(start).Milliseconds(),
		Timestamp: time.Now(),
	})
}

// Len 当前条目数，可作为增量读取的游标
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot 返回全部条目的副本
func (l *Log) Snapshot() []Entry {
	return l.Since(0)
}

// Since 返回游标之后的条目副本，供 UI 增量拉取
func (l *Log) Since(cursor int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(l.entries) {
		return nil
	}
	out := make([]Entry, len(l.entries)-cursor)
	copy(out, l.entries[cursor:])
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
