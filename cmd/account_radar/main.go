package main

import (
	"context"
	"flag"
	"log"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/go-kratos/kratos/v2"
	kratoslog "github.com/go-kratos/kratos/v2/log"
	"github.com/joho/godotenv"

	"github.com/iWorld-y/account_radar/internal/agent"
	"github.com/iWorld-y/account_radar/internal/server"
	"github.com/iWorld-y/account_radar/internal/service"
	"github.com/iWorld-y/account_radar/pkg/config"
	"github.com/iWorld-y/account_radar/pkg/finance/yahoo"
	"github.com/iWorld-y/account_radar/pkg/logger"
	"github.com/iWorld-y/account_radar/pkg/search/factory"
	"github.com/iWorld-y/account_radar/pkg/storage"
)

var confPath = flag.String("conf", "configs/config.yaml", "配置文件路径")

func main() {
	flag.Parse()

	// .env 不存在时静默跳过
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	ctx := context.Background()

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		logger.Log.Fatalf("初始化 LLM 失败: %v", err)
	}

	chain, err := factory.NewChain(cfg)
	if err != nil {
		logger.Log.Fatalf("初始化搜索链失败: %v", err)
	}

	// 归档库可选：未配置 host 则跳过，所有写入路径自动降级
	var store *storage.Storage
	if cfg.DB.Host != "" {
		store, err = storage.NewStorage(cfg.DB)
		if err != nil {
			logger.Log.Errorf("初始化归档库失败，继续以无归档模式运行: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	a := agent.New(cfg, cm, chain, yahoo.NewClient(cfg.Finance.Timeout), store)
	svc := service.NewChatService(a, kratoslog.DefaultLogger)
	httpSrv := server.NewHTTPServer(&cfg.Server, svc)

	app := kratos.New(
		kratos.Name("account_radar"),
		kratos.Server(httpSrv),
	)

	logger.Log.Infof("account_radar 启动，监听 %s", cfg.Server.Addr)
	if err := app.Run(); err != nil {
		logger.Log.Fatalf("服务退出: %v", err)
	}
}
