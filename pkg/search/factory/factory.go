package factory

import (
	"fmt"

	"github.com/iWorld-y/account_radar/pkg/config"
	"github.com/iWorld-y/account_radar/pkg/search"
	"github.com/iWorld-y/account_radar/pkg/search/searxng"
	"github.com/iWorld-y/account_radar/pkg/search/tavily"
)

// NewChain 根据配置构建搜索降级链
// chain 列表决定尝试顺序；未配置时按可用密钥推断默认顺序
func NewChain(cfg *config.Config) (*search.Chain, error) {
	names := cfg.Search.Chain
	if len(names) == 0 {
		// 默认回退逻辑：有 tavily key 优先 tavily，再接 searxng
		if cfg.Search.Tavily.APIKey != "" {
			names = append(names, "tavily")
		}
		if cfg.Search.SearXNG.BaseURL != "" {
			names = append(names, "searxng")
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("search chain not configured")
		}
	}

	var backends []search.Backend
	for _, name := range names {
		s, err := newBackend(name, cfg)
		if err != nil {
			return nil, err
		}
		backends = append(backends, search.Backend{Name: name, Searcher: s})
	}

	return search.NewChain(backends, nil), nil
}

func newBackend(name string, cfg *config.Config) (search.Searcher, error) {
	switch name {
	case "tavily":
		if cfg.Search.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(cfg.Search.Tavily.APIKey), nil

	case "searxng":
		if cfg.Search.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(cfg.Search.SearXNG.BaseURL, cfg.Search.SearXNG.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", name)
	}
}
