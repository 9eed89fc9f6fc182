// Package main 是应用程序的入口点。
package main

import (
	"context"
	"doc-chat-go/internal/config"
	"doc-chat-go/internal/handler"
	"doc-chat-go/internal/middleware"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/pipeline"
	"doc-chat-go/internal/repository"
	"doc-chat-go/internal/service"
	"doc-chat-go/pkg/database"
	"doc-chat-go/pkg/es"
	"doc-chat-go/pkg/kafka"
	"doc-chat-go/pkg/llm"
	"doc-chat-go/pkg/log"
	"doc-chat-go/pkg/storage"
	"doc-chat-go/pkg/token"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与检索引擎
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}

	// 建表迁移
	if err := database.DB.AutoMigrate(&model.User{}, &model.Conversation{}, &model.FileRecord{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB, database.RDB)
	fileRepo := repository.NewFileRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	producer := kafka.NewProducer(cfg.Kafka)

	maxAttachmentSize := cfg.Attachment.MaxSizeBytes
	if maxAttachmentSize == 0 {
		maxAttachmentSize = service.DefaultMaxAttachmentSize
	}

	userService := service.NewUserService(userRepository, jwtManager)
	attachmentService := service.NewAttachmentService(maxAttachmentSize, cfg.MinIO)
	conversationService := service.NewConversationService(conversationRepo)
	chatService := service.NewChatService(conversationRepo, attachmentService, llmClient, producer)
	fileService := service.NewFileService(fileRepo, conversationRepo, attachmentService, cfg.MinIO)
	searchService := service.NewSearchService(cfg.Elasticsearch.IndexName)

	// 6. 初始化轮次索引管道并启动后台 Kafka 消费者
	indexer := pipeline.NewTurnIndexer(cfg.Elasticsearch.IndexName)
	go kafka.StartConsumer(cfg.Kafka, indexer)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	api := r.Group("/api")
	{
		// Auth 路由组
		auth := api.Group("/auth")
		{
			auth.POST("/signup", handler.NewUserHandler(userService).Signup)
			auth.POST("/login", handler.NewUserHandler(userService).Login)
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		// Users 路由组，需要认证
		users := api.Group("/users")
		users.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			users.GET("/me", handler.NewUserHandler(userService).GetProfile)
		}

		// Chat 路由组，需要认证
		chats := api.Group("/chats")
		chats.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chatHandler := handler.NewChatHandler(chatService, conversationService)
			fileHandler := handler.NewFileHandler(fileService)
			chats.POST("/start", chatHandler.Start)
			chats.POST("/message", chatHandler.SendMessage)
			chats.GET("", chatHandler.List)
			chats.GET("/:chatId", chatHandler.Get)
			chats.GET("/:chatId/files", fileHandler.ListByChat)
		}

		// Stats 路由，需要认证（与 /chats/:chatId 分离，避免路由冲突）
		stats := api.Group("/stats")
		stats.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			stats.GET("", handler.NewChatHandler(chatService, conversationService).Stats)
		}

		// File 路由组，需要认证
		files := api.Group("/files")
		files.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			fileHandler := handler.NewFileHandler(fileService)
			files.POST("/upload", fileHandler.Upload)
			files.GET("/:fileId/download", fileHandler.Download)
			files.DELETE("/:fileId", fileHandler.Delete)
		}

		// Search 路由组，需要认证
		search := api.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			search.GET("", handler.NewSearchHandler(searchService).Search)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
