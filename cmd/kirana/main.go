package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kirana/internal/api"
	"kirana/internal/broker"
	"kirana/internal/config"
	"kirana/internal/notify"
	"kirana/internal/promo"
	"kirana/internal/quota"
	"kirana/internal/selection"
	"kirana/internal/store"
	"kirana/internal/tasks"
	"kirana/internal/util"
	"kirana/internal/vision"
	"kirana/internal/voice"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		cfg = config.LoadDefault()
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()
	log := util.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	queue := tasks.NewQueue(256)
	defer queue.Close()
	db.SetTaskQueue(queue)

	// Selection state lives in Redis; fall back to in-process state when
	// Redis is unreachable so a dev setup still works.
	var sel selection.Store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, using in-memory selection", zap.Error(err))
		sel = selection.NewMemory()
	} else {
		sel = selection.NewRedis(redisClient)
	}

	hub := notify.NewHub()

	var eventSink notify.EventSink
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		db.SetEventSink(producer)
		eventSink = producer

		// Every node consumes the full stream under its own group so its
		// hub can serve whichever users are connected to it.
		groupID := fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, uuid.NewString())
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, groupID)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx, hub.HandleEvent); err != nil && ctx.Err() == nil {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	llmOpts := []openai.Option{openai.WithToken(cfg.AI.APIKey), openai.WithModel(cfg.AI.Model)}
	if cfg.AI.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.AI.BaseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		log.Fatal("failed to initialize model client", zap.Error(err))
	}

	gate := quota.NewGate(db, queue)
	extractor := vision.NewExtractor(llm, cfg.AI.VisionModel, cfg.AI.Temperature)
	drafts := vision.NewDraftManager(db)
	promoter := promo.NewGenerator(llm, cfg.AI.Model, db)

	interpreter := voice.NewInterpreter(db, gate, sel, promoter)
	voiceServer := voice.NewServer(interpreter, func() (voice.AgentStream, error) {
		return voice.DialAgent(cfg.Voice.AgentURL)
	}, cfg.Voice.OutputSampleRate)

	scanner := notify.NewScanner(db, hub, eventSink)
	go scanner.Run(ctx, time.Hour)

	apiServer := api.NewServer(api.Config{
		Store:     db,
		Gate:      gate,
		Selection: sel,
		Extractor: extractor,
		Drafts:    drafts,
		Hub:       hub,
		Voice:     voiceServer,
		JWTSecret: cfg.Auth.JWTSecret,
	})

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiServer.Router,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		cancel()
	}()

	log.Info("starting API server", zap.Int("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("API server error", zap.Error(err))
	}
}

func startMetricsServer(port int, path string) {
	log := util.GetLogger()

	metricsRouter := gin.Default()
	metricsRouter.GET(path, gin.WrapH(promhttp.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	log.Info("starting metrics server", zap.Int("port", port))
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("metrics server error", zap.Error(err))
	}
}
