package agent

import (
	"errors"

	"github.com/iWorld-y/account_radar/pkg/finance"
	"github.com/iWorld-y/account_radar/pkg/search"
)

// 错误分类：控制器边界上每一类都映射为固定的错误码，
// 任何一类都不会以未处理故障的形式抛给调用方
var (
	// ErrAmbiguousEntity 公司名可指代多个真实实体，需要用户澄清
	ErrAmbiguousEntity = errors.New("ambiguous entity")
	// ErrGenerationRefused LLM 拒绝生成（安全拦截）
	ErrGenerationRefused = errors.New("generation refused")
	// ErrMalformedExtraction 结构化抽取在重试后仍不合法
	ErrMalformedExtraction = errors.New("malformed extraction")
	// ErrInvalidEditField 编辑目标不是已知小节
	ErrInvalidEditField = errors.New("invalid edit field")
	// ErrCompanyNotFound 会话中不存在该公司的档案
	ErrCompanyNotFound = errors.New("company not found")
)

// ErrorCode 将分类错误映射为边界错误码，非分类错误返回 INTERNAL
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAmbiguousEntity):
		return "AMBIGUOUS_ENTITY"
	case errors.Is(err, search.ErrAllProvidersExhausted):
		return "ALL_PROVIDERS_EXHAUSTED"
	case errors.Is(err, finance.ErrInvalidTicker):
		return "INVALID_TICKER"
	case errors.Is(err, ErrGenerationRefused):
		return "GENERATION_REFUSED"
	case errors.Is(err, ErrMalformedExtraction):
		return "MALFORMED_EXTRACTION"
	case errors.Is(err, ErrInvalidEditField):
		return "INVALID_EDIT_FIELD"
	case errors.Is(err, ErrCompanyNotFound):
		return "COMPANY_NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
