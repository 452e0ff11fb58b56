package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prosterio-go/internal/api/handler"
	"prosterio-go/internal/api/router"
	"prosterio-go/internal/auth"
	"prosterio-go/internal/config"
	"prosterio-go/internal/extractor"
	"prosterio-go/internal/gdrive"
	"prosterio-go/internal/llm"
	"prosterio-go/internal/logger"
	"prosterio-go/internal/mailer"
	"prosterio-go/internal/outbox"
	"prosterio-go/internal/processor"
	"prosterio-go/internal/retrieval"
	"prosterio-go/internal/storage"
	"prosterio-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const serviceName = "prosterio-go"

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	// .env 中的变量优先于配置文件，已存在的环境变量不会被覆盖
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		hlog.Warnf("加载 .env 失败: %v", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		hlog.Fatalf("加载配置失败: %v", err)
	}

	logCloser, err := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		hlog.Fatalf("初始化日志失败: %v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	hlog.SetLogger(hertzzerolog.From(logger.Logger))
	log := logger.Named("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceNameForTrace := cfg.Tracing.ServiceName
	if serviceNameForTrace == "" {
		serviceNameForTrace = serviceName
	}
	shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: serviceNameForTrace,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("初始化 tracing 失败")
	}

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()
	log.Info().Msg("存储服务初始化成功")

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, config.GetDuration(cfg.Auth.TokenTTL, 24*time.Hour), cfg.Auth.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化 JWT 失败")
	}

	models, err := llm.NewFactory(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化模型客户端失败")
	}

	// 未配置的可选组件保持为 nil 接口，避免出现带类型的 nil
	var objects storage.ObjectStorage
	if store.MinIO != nil {
		objects = store.MinIO
	}

	var mail processor.Mailer
	if m, err := mailer.NewSMTPMailer(cfg.Mail); err != nil {
		log.Warn().Err(err).Msg("邮件未配置，重置密码不可用")
	} else {
		mail = m
	}

	var drive handler.DriveUploader
	if u, err := gdrive.NewUploader(ctx, cfg.GDrive); err != nil {
		log.Warn().Err(err).Msg("Google Drive 未配置")
	} else {
		drive = u
	}

	var batch processor.BatchExtractor
	if extractModel, modelName, err := models.ChatModel(llm.PurposeExtraction); err != nil {
		log.Warn().Err(err).Msg("抽取模型未配置，简历抽取不可用")
	} else {
		texts, err := extractor.NewTextExtractors(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("初始化文本提取器失败")
		}
		batch = extractor.NewResumeExtractor(extractModel, texts,
			extractor.WithPromptTemplate(cfg.Documents.PromptTemplate),
			extractor.WithTimeout(config.GetDuration(cfg.LLM.ExtractionTimeout, time.Minute)),
		)
		log.Info().Str("model", modelName).Msg("简历抽取模型初始化成功")
	}

	var rag handler.Answerer
	if r, err := newRetriever(cfg, models, store); err != nil {
		log.Warn().Err(err).Msg("检索问答不可用")
	} else {
		rag = r
	}

	// Redis 不可用时统计不缓存
	var (
		invalidator processor.AnalyticsInvalidator
		cache       processor.AnalyticsCache
		cacheTTL    time.Duration
	)
	if store.Redis != nil {
		invalidator, cache, cacheTTL = store.Redis, store.Redis, store.Redis.AnalyticsCacheTTL()
	}

	employeeSvc := processor.NewEmployeeService(store.MySQL, invalidator, cfg.RabbitMQ.EmployeeEventsExchange)
	documentSvc := processor.NewDocumentService(batch, objects, processor.DocumentOptions{
		Workers:        cfg.Documents.Workers,
		MaxFileBytes:   int64(cfg.Documents.MaxFileSizeMB) << 20,
		StoreOriginals: cfg.Documents.StoreOriginals,
	})
	authSvc := processor.NewAuthService(store.MySQL, tokens, mail, config.GetDuration(cfg.Auth.OTPTTL, 15*time.Minute), cfg.Auth.BcryptCost)
	analyticsSvc := processor.NewAnalyticsService(store.MySQL, cache, cacheTTL)
	recordSvc := processor.NewRecordService(store.MySQL)

	var relay *outbox.MessageRelay
	if store.RabbitMQ != nil && cfg.RabbitMQ.EmployeeEventsExchange != "" {
		if err := store.RabbitMQ.EnsureExchange(cfg.RabbitMQ.EmployeeEventsExchange, "topic", true); err != nil {
			log.Fatal().Err(err).Msg("声明员工事件交换机失败")
		}
		relay = outbox.NewMessageRelay(store.MySQL.DB(), store.RabbitMQ, outbox.Options{
			PollingInterval: config.GetDuration(cfg.RabbitMQ.RelayInterval, 5*time.Second),
			BatchSize:       cfg.RabbitMQ.RelayBatchSize,
			MaxRetries:      cfg.RabbitMQ.RelayMaxRetries,
		})
		relay.Start()
		log.Info().Msg("消息中继服务已启动")
	}

	h := newServer(cfg.Server)

	router.RegisterRoutes(h, tokens, router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Employees: handler.NewEmployeeHandler(employeeSvc),
		Documents: handler.NewDocumentHandler(documentSvc, objects, drive),
		Insights:  handler.NewInsightHandler(analyticsSvc, rag),
		Records:   handler.NewRecordHandler(recordSvc),
	})

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动")
		h.Spin()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("接收到终止信号，正在优雅退出...")

	if relay != nil {
		relay.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("服务器关闭失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("关闭 tracing 失败")
	}
	log.Info().Msg("优雅退出完成")
}

// newServer 创建带 tracing 的 hertz 服务器
func newServer(cfg config.ServerConfig) *server.Hertz {
	// 未配置时沿用 hertz 默认的 4MB
	maxBodySize := 4 << 20
	if cfg.MaxRequestBodyMB > 0 {
		maxBodySize = cfg.MaxRequestBodyMB << 20
	}
	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(maxBodySize),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	return h
}

// newRetriever 组装补全模型、嵌入模型与评估器
func newRetriever(cfg *config.Config, models *llm.Factory, store *storage.Storage) (*retrieval.Retriever, error) {
	chat, _, err := models.ChatModel(llm.PurposeCompletion)
	if err != nil {
		return nil, err
	}
	embedder, embeddingModel, err := models.Embedder()
	if err != nil {
		return nil, err
	}
	policy, err := retrieval.ParsePolicy(cfg.Retrieval.SelectionPolicy)
	if err != nil {
		return nil, err
	}
	completionTimeout := config.GetDuration(cfg.LLM.CompletionTimeout, time.Minute)
	opts := []retrieval.Option{
		retrieval.WithPolicy(policy, cfg.Retrieval.TopK),
		retrieval.WithPromptTemplate(cfg.Retrieval.PromptTemplate),
		retrieval.WithTimeouts(completionTimeout, config.GetDuration(cfg.LLM.EmbeddingTimeout, 30*time.Second)),
	}
	if cfg.Retrieval.Evaluate {
		opts = append(opts, retrieval.WithEvaluator(retrieval.NewEvaluator(chat, store.MySQL, completionTimeout)))
	}
	return retrieval.NewRetriever(store.MySQL, chat, embedder, embeddingModel, opts...), nil
}
