package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/account_radar/pkg/logger"
)

// llmClient 统一封装所有 LLM 调用：限流、429 退避、拒答识别、围栏清洗
type llmClient struct {
	cm      model.ChatModel
	limiter *rate.Limiter
}

func newLLMClient(cm model.ChatModel, limiter *rate.Limiter) *llmClient {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &llmClient{cm: cm, limiter: limiter}
}

// generate 发起一次生成调用，返回清洗后的文本
// 安全拦截返回 ErrGenerationRefused，限流类错误带退避重试
func (c *llmClient) generate(ctx context.Context, system, user string) (string, error) {
	maxRetries := 3
	baseDelay := 2 * time.Second
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		messages := []*schema.Message{
			{Role: schema.System, Content: system},
			{Role: schema.User, Content: user},
		}

		resp, err := c.cm.Generate(ctx, messages)
		if err != nil {
			if strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "too many requests") {
				lastErr = err
				if i < maxRetries {
					time.Sleep(baseDelay * time.Duration(1<<i))
					continue
				}
			}
			return "", err
		}

		if refused(resp) {
			logger.Log.Warnf("LLM 拒绝生成: finish_reason=%s", finishReason(resp))
			return "", ErrGenerationRefused
		}

		return scrubFence(resp.Content), nil
	}
	return "", fmt.Errorf("llm generate failed after retries: %w", lastErr)
}

// refused 判定是否为安全拦截：content_filter 或空回复
func refused(resp *schema.Message) bool {
	if finishReason(resp) == "content_filter" {
		return true
	}
	return strings.TrimSpace(resp.Content) == ""
}

func finishReason(resp *schema.Message) string {
	if resp.ResponseMeta == nil {
		return ""
	}
	return resp.ResponseMeta.FinishReason
}

// scrubFence 清除模型输出里的 markdown 代码围栏
func scrubFence(content string) string {
	clean := strings.TrimSpace(content)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

// extractJSONObject 截取首个 '{' 到末个 '}' 之间的片段
// 模型偶尔会在 JSON 前后夹带说明文字
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
