package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iWorld-y/account_radar/pkg/finance"
	"github.com/iWorld-y/account_radar/pkg/model"
)

const quoteURL = "https://query1.finance.yahoo.com/v7/finance/quote"

// Client Yahoo Finance 行情客户端
type Client struct {
	client *http.Client
}

// NewClient 创建 Yahoo Finance 客户端，timeout 单位秒
func NewClient(timeout int) *Client {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 15 * time.Second
	}
	return &Client{
		client: &http.Client{Timeout: t},
	}
}

// Ensure Client implements finance.Provider
var _ finance.Provider = (*Client)(nil)

// quoteResponse Yahoo quote API 响应结构
type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// Snapshot implements finance.Provider
// ticker 查不到行情返回 finance.ErrInvalidTicker，传输层异常返回
// finance.ErrUnavailable，两者都不会携带半成品快照
func (c *Client) Snapshot(ctx context.Context, ticker string) (*model.FinancialSnapshot, error) {
	info, err := c.getQuoteInfo(ctx, ticker)
	if err != nil {
		return nil, err
	}

	price := getFloat64(info, "regularMarketPrice")
	if price == 0 {
		price = getFloat64(info, "currentPrice")
	}
	if price == 0 {
		return nil, fmt.Errorf("no price for %q: %w", ticker, finance.ErrInvalidTicker)
	}

	return &model.FinancialSnapshot{
		Ticker:    ticker,
		Price:     price,
		MarketCap: getFloat64(info, "marketCap"),
		Currency:  getString(info, "currency"),
		Timestamp: time.Now(),
		Resolved:  true,
	}, nil
}

// getQuoteInfo 拉取单个 ticker 的报价字段
func (c *Client) getQuoteInfo(ctx context.Context, symbol string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Add("symbols", symbol)
	params.Add("fields", "symbol,regularMarketPrice,currentPrice,marketCap,currency,longName,shortName")

	req, err := http.NewRequestWithContext(ctx, "GET", quoteURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	// 模拟浏览器请求头，避免被拦截
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", finance.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", finance.ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("symbol %q not found: %w", symbol, finance.ErrInvalidTicker)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", finance.ErrUnavailable, resp.StatusCode, string(body))
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", finance.ErrUnavailable, err)
	}

	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("yahoo api error %v: %w", result.QuoteResponse.Error, finance.ErrInvalidTicker)
	}
	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %q: %w", symbol, finance.ErrInvalidTicker)
	}

	return result.QuoteResponse.Result[0], nil
}

// 从 map 中安全取值的辅助函数

func getFloat64(m map[string]interface{}, key string) float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		}
	}
	return 0
}

func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}
