package finance

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/iWorld-y/account_radar/pkg/model"
)

// ErrInvalidTicker ticker 无效或无对应行情数据
var ErrInvalidTicker = errors.New("invalid ticker")

// ErrUnavailable 行情数据源不可用（超时、限流、响应异常）
var ErrUnavailable = errors.New("finance provider unavailable")

// Provider 定义通用的行情快照接口
type Provider interface {
	Snapshot(ctx context.Context, ticker string) (*model.FinancialSnapshot, error)
}

var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// GuessTicker 从公司名中猜测 ticker（全大写短词视为候选）
// 猜不到返回空串，由调用方走搜索兜底
func GuessTicker(company string) string {
	m := tickerPattern.FindString(company)
	// 单字母误报率太高，常见的 "A I" 之类缩写不算
	if len(m) < 2 {
		return ""
	}
	// 排除整句大写的情况
	if strings.EqualFold(m, company) && strings.Contains(company, " ") {
		return ""
	}
	return m
}

// ExtractTicker 从任意文本（如搜索结果标题）中提取第一个 ticker 候选
func ExtractTicker(text string) string {
	return tickerPattern.FindString(strings.ToUpper(text))
}
