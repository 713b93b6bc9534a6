package server

import (
	"context"

	"github.com/carlos18bp/live-chat-feature/config"
	"github.com/carlos18bp/live-chat-feature/handlers"
	"github.com/carlos18bp/live-chat-feature/hub"
	"github.com/carlos18bp/live-chat-feature/kafka"
	"github.com/carlos18bp/live-chat-feature/limiter"
	"github.com/carlos18bp/live-chat-feature/mail"
	"github.com/carlos18bp/live-chat-feature/models"
	appredis "github.com/carlos18bp/live-chat-feature/redis"
	"github.com/carlos18bp/live-chat-feature/services"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Echo                 *echo.Echo
	DB                   *gorm.DB
	Config               *config.Config
	Hub                  *hub.Hub
	ChatHandler          *handlers.ChatHandler
	ChatWebSocketHandler *handlers.ChatWebSocketHandler

	redis    *appredis.RedisClient
	producer *kafka.Producer
	consumer *kafka.Consumer
	cancel   context.CancelFunc
}

func NewServer() *Server {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		log.Fatal("Failed to auto-migrate database:", err)
	}

	// 初始化 Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength},
		MaxAge:           86400,
	}))

	// Redis 不可用时降级运行：在线列表为空、限流关闭
	redisClient, err := appredis.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, presence and rate limiting disabled:", err)
		redisClient = nil
	}

	// 全局广播组：显式构造，按引用注入每个连接处理器
	chatHub := hub.New()

	var mailer handlers.Mailer
	if cfg.Mail.Host != "" {
		mailer = mail.NewMailer(&cfg.Mail)
	}

	s := &Server{
		Echo:   e,
		DB:     db,
		Config: &cfg,
		Hub:    chatHub,
		redis:  redisClient,
	}

	var events handlers.EventPublisher
	if cfg.Kafka.Enabled {
		s.startKafka(&cfg)
		if s.producer != nil {
			events = s.producer
		}
	}

	chatService := services.NewChatService(db)
	s.ChatHandler = handlers.NewChatHandler(chatService, chatHub, mailer, events)
	s.ChatWebSocketHandler = handlers.NewChatWebSocketHandler(chatHub, redisClient)

	// --- 设置路由 ---
	var rateLimit echo.MiddlewareFunc
	if redisClient != nil {
		manager := limiter.NewManager(redisClient.Client, limiter.NewStrategy(cfg.Server.RateLimitStrategy))
		rateLimit = newWriteRateLimit(manager)
	}
	s.SetupRoutes(rateLimit)
	return s
}

// 事件流：生产者挂到 API 侧，消费者在后台累计会话统计
func (s *Server) startKafka(cfg *config.Config) {
	saramaCfg, err := kafka.NewSaramaConfigFor(&cfg.Kafka)
	if err != nil {
		log.Warn("Kafka config invalid, event stream disabled:", err)
		return
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, saramaCfg)
	if err != nil {
		log.Warn("Kafka producer unavailable, event stream disabled:", err)
		return
	}
	s.producer = producer

	handler := kafka.NewChatEventHandler(s.redis)
	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID,
		[]string{cfg.Kafka.Topic}, saramaCfg, handler)
	if err != nil {
		log.Warn("Kafka consumer unavailable:", err)
		return
	}
	s.consumer = consumer

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error("Kafka consumer stopped:", err)
		}
	}()
}

func (s *Server) Start(addr string) {
	log.Fatal(s.Echo.Start(addr))
}

func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.consumer != nil {
		s.consumer.Close()
	}
	if s.producer != nil {
		s.producer.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}
