package model

import "time"

// Intent 用户意图分类
type Intent string

const (
	IntentResearch Intent = "research"
	IntentFollowUp Intent = "follow_up"
	IntentCompare  Intent = "compare"
	IntentOffTopic Intent = "off_topic"
	IntentGreeting Intent = "greeting"
)

// IntentResult 意图识别结果
type IntentResult struct {
	Intent     Intent   `json:"intent"`
	Companies  []string `json:"companies"`
	Ambiguous  bool     `json:"ambiguous"`
	Candidates []string `json:"candidates"`
}

// SearchResult 单条检索结果，作为报告的溯源依据
type SearchResult struct {
	Provider      string `json:"provider"`
	Query         string `json:"query"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	Rank          int    `json:"rank"`
	PublishedDate string `json:"published_date,omitempty"`
}

// FinancialSnapshot 某一时刻的行情快照
// Resolved 为 false 表示未能解析到有效行情（ticker 无效或数据源不可用），
// Reason 记录原因；此时其余字段无意义
type FinancialSnapshot struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	MarketCap float64   `json:"market_cap"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
	Reason    string    `json:"reason,omitempty"`
}

// ExtractionFailed 结构化抽取失败时写入对应小节的占位值
const ExtractionFailed = "extraction_failed"

// 账户计划固定的六个小节 key
const (
	SectionExecutiveSummary = "executive_summary"
	SectionProductsServices = "products_services"
	SectionMarketAnalysis   = "market_analysis"
	SectionFinancialHealth  = "financial_health"
	SectionSWOT             = "swot"
	SectionRecommendations  = "strategic_recommendations"
)

// SectionKeys 返回固定小节 key 的有序列表
func SectionKeys() []string {
	return []string{
		SectionExecutiveSummary,
		SectionProductsServices,
		SectionMarketAnalysis,
		SectionFinancialHealth,
		SectionSWOT,
		SectionRecommendations,
	}
}

// SectionTitles 小节 key 到报告标题的映射
var SectionTitles = map[string]string{
	SectionExecutiveSummary: "Executive Summary",
	SectionProductsServices: "Product & Services Portfolio",
	SectionMarketAnalysis:   "Market Analysis",
	SectionFinancialHealth:  "Financial Health",
	SectionSWOT:             "SWOT Analysis",
	SectionRecommendations:  "Strategic Recommendations",
}

// AccountPlan 结构化账户计划，六个小节永远齐全
// 缺数据用空字符串或 ExtractionFailed 占位，绝不缺 key
type AccountPlan struct {
	CompanyName              string `json:"company_name"`
	ExecutiveSummary         string `json:"executive_summary"`
	ProductsServices         string `json:"products_services"`
	MarketAnalysis           string `json:"market_analysis"`
	FinancialHealth          string `json:"financial_health"`
	SWOT                     string `json:"swot"`
	StrategicRecommendations string `json:"strategic_recommendations"`
}

// Section 按 key 读取小节内容
func (p *AccountPlan) Section(key string) (string, bool) {
	switch key {
	case SectionExecutiveSummary:
		return p.ExecutiveSummary, true
	case SectionProductsServices:
		return p.ProductsServices, true
	case SectionMarketAnalysis:
		return p.MarketAnalysis, true
	case SectionFinancialHealth:
		return p.FinancialHealth, true
	case SectionSWOT:
		return p.SWOT, true
	case SectionRecommendations:
		return p.StrategicRecommendations, true
	}
	return "", false
}

// SetSection 按 key 写入小节内容，未知 key 返回 false 且不修改任何字段
func (p *AccountPlan) SetSection(key, content string) bool {
	switch key {
	case SectionExecutiveSummary:
		p.ExecutiveSummary = content
	case SectionProductsServices:
		p.ProductsServices = content
	case SectionMarketAnalysis:
		p.MarketAnalysis = content
	case SectionFinancialHealth:
		p.FinancialHealth = content
	case SectionSWOT:
		p.SWOT = content
	case SectionRecommendations:
		p.StrategicRecommendations = content
	default:
		return false
	}
	return true
}

// EditRecord 一次人工编辑记录
type EditRecord struct {
	Section   string    `json:"section"`
	Previous  string    `json:"previous"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CompanyProfile 单个公司的研究状态
// OriginalReport 一旦写入即不可变，后续再生成只更新 CurrentReport
type CompanyProfile struct {
	Canonical      string             `json:"canonical"`
	DisplayName    string             `json:"display_name"`
	Plan           *AccountPlan       `json:"plan"`
	OriginalReport string             `json:"original_report"`
	CurrentReport  string             `json:"current_report"`
	Snapshot       *FinancialSnapshot `json:"snapshot,omitempty"`
	Provenance     []SearchResult     `json:"provenance"`
	Edits          []EditRecord       `json:"edits,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// MetricRow 对比表中的一行：指标名 + 每家公司的取值
type MetricRow struct {
	Metric string            `json:"metric"`
	Values map[string]string `json:"values"`
}

// ComparisonResult 多公司对比结果
// Companies 保留请求中的列顺序；Metrics 与 Differentiators 的取值与列顺序无关
type ComparisonResult struct {
	Companies       []string            `json:"companies"`
	Metrics         []MetricRow         `json:"metrics"`
	Differentiators map[string][]string `json:"differentiators"`
	Narrative       string              `json:"narrative"`
}
