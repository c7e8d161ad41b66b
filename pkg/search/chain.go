package search

import (
	"context"
	"fmt"
	"time"

	"github.com/iWorld-y/account_radar/pkg/logger"
	"github.com/iWorld-y/account_radar/pkg/toollog"
)

// Backend 降级链中的一个具名后端
type Backend struct {
	Name     string
	Searcher Searcher
}

// Chain 有序搜索降级链
// 按顺序尝试各后端，返回第一个成功后端的结果；全部失败返回
// ErrAllProvidersExhausted。每次后端调用（无论成败）都会向工具日志
// 追加且仅追加一条记录
type Chain struct {
	backends []Backend
	tlog     *toollog.Log
}

// NewChain 创建降级链，tlog 可为 nil（此时不记录调用日志）
func NewChain(backends []Backend, tlog *toollog.Log) *Chain {
	return &Chain{backends: backends, tlog: tlog}
}

// Ensure Chain implements Searcher
var _ Searcher = (*Chain)(nil)

// WithLog 返回绑定了指定工具日志的链副本，后端列表共享
// 每个会话持有自己的日志，链本身无状态，可被多个会话复用
func (c *Chain) WithLog(tlog *toollog.Log) *Chain {
	return &Chain{backends: c.backends, tlog: tlog}
}

// Search 实现 Searcher
func (c *Chain) Search(ctx context.Context, req *Request) (*Response, error) {
	if len(c.backends) == 0 {
		return nil, fmt.Errorf("search chain is empty: %w", ErrAllProvidersExhausted)
	}

	var lastErr error
	for _, b := range c.backends {
		start := time.Now()
		resp, err := b.Searcher.Search(ctx, req)
		if err != nil {
			lastErr = err
			c.record(b.Name, req.Query, false, err.Error(), start)
			logger.Log.Warnf("搜索后端 [%s] 失败，尝试下一个: %v", b.Name, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		c.record(b.Name, req.Query, true, fmt.Sprintf("found %d", len(resp.Results)), start)
		for i := range resp.Results {
			resp.Results[i].Provider = b.Name
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%w: last error: %v", ErrAllProvidersExhausted, lastErr)
}

func (c *Chain) record(provider, query string, ok bool, detail string, start time.Time) {
	if c.tlog == nil {
		return
	}
	c.tlog.Record("search:"+provider, query, ok, detail, start)
}
