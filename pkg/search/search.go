package search

import (
	"context"
	"errors"
)

// ErrAllProvidersExhausted 降级链中所有后端均失败
var ErrAllProvidersExhausted = errors.New("all search providers exhausted")

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query             string
	Topic             string // "news" or "general"
	MaxResults        int
	IncludeRawContent bool
}

// Response 通用搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
// Provider 由降级链在返回前标记为实际命中的后端名
type Result struct {
	Provider      string
	Title         string
	URL           string
	Content       string
	RawContent    string
	Score         float64
	PublishedDate string
}
