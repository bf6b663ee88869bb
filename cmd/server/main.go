package main

import (
	"flag"

	"k8s.io/klog/v2"

	"github.com/structgen/backend/config"
	"github.com/structgen/backend/internal/handler"
	"github.com/structgen/backend/internal/pkg/database"
	"github.com/structgen/backend/internal/pkg/llm"
	"github.com/structgen/backend/internal/pkg/metrics"
	"github.com/structgen/backend/internal/repository"
	"github.com/structgen/backend/internal/router"
	"github.com/structgen/backend/internal/service/generation"
)

var dumpConfig = flag.String("dump-config", "", "将生效配置写入指定 yaml 文件后退出")

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()
	if *dumpConfig != "" {
		if err := cfg.Save(*dumpConfig); err != nil {
			klog.Fatalf("Failed to write config: %v", err)
		}
		klog.Infof("配置已写入 %s", *dumpConfig)
		return
	}
	collector := metrics.NewCollector("structgen")

	client, err := llm.NewClient(cfg, collector)
	if err != nil {
		klog.Fatalf("Failed to create generation client: %v", err)
	}
	if cfg.LLM.APIKey == "" {
		klog.Warningf("OPENAI_API_KEY 未设置，生成服务调用将失败并降级为确定性生成")
	}

	// 生成历史（仅元数据）
	var history generation.HistoryRecorder
	var historyHandler *handler.HistoryHandler
	if cfg.Database.HistoryEnabled {
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			klog.Fatalf("Failed to initialize database: %v", err)
		}
		repo := repository.NewGenerationRepository(db)
		history = repo
		historyHandler = handler.NewHistoryHandler(repo)
	}

	svc := generation.NewService(cfg, client, history, collector)
	r := router.Setup(cfg, handler.NewGenerateHandler(svc), historyHandler, collector)

	klog.Infof("Server starting on port %s (provider=%s, model=%s)", cfg.Server.Port, cfg.LLM.Provider, cfg.LLM.Model)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		klog.Fatalf("Failed to start server: %v", err)
	}
}
