package routes

import (
	"github.com/datasight/backend/internal/controllers"
	"github.com/datasight/backend/internal/middleware"
	"github.com/datasight/backend/internal/services"
	"github.com/datasight/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes wires services and controllers and registers all routes.
// Clients are constructed once here and injected; nothing is lazily
// initialized behind the scenes.
func SetupRoutes(r *gin.Engine, db *gorm.DB, stopChan chan struct{}) {
	llmService := services.NewLLMServiceFromEnv()
	promptBuilder := services.NewPromptBuilder()
	classifier := services.NewSizeClassifierFromEnv()
	blobStore := storage.NewLocalBlobStoreFromEnv()

	topicAnalysis := services.NewTopicAnalysisService(db, llmService, promptBuilder)
	topicAnalysis.StartWorkers(2, stopChan)

	ingestion := services.NewIngestionService(db, llmService, promptBuilder, classifier, blobStore, topicAnalysis)
	chat := services.NewChatService(db, llmService, promptBuilder)

	authController := controllers.NewAuthController(db)
	datasetController := controllers.NewDatasetController(db, blobStore, ingestion)
	topicController := controllers.NewTopicController(db, topicAnalysis)
	chatController := controllers.NewChatController(db, chat)
	notificationController := controllers.NewNotificationController(db)
	llmController := controllers.NewLLMController(llmService)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authController.Login)
			auth.POST("/register", authController.Register)
			auth.POST("/refresh", middleware.AuthMiddleware(), authController.RefreshToken)
			auth.POST("/change-password", middleware.AuthMiddleware(), authController.ChangePassword)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			datasets := protected.Group("/datasets")
			{
				datasets.POST("/upload", datasetController.UploadDataset)
				datasets.GET("", datasetController.GetDatasets)
				datasets.GET("/:id", datasetController.GetDataset)
				datasets.POST("/:id/topics", topicController.CreateTopic)
				datasets.GET("/:id/topics", topicController.GetTopics)
			}

			topics := protected.Group("/topics")
			{
				topics.GET("/:topicId", topicController.GetTopic)
				topics.POST("/:topicId/chat", chatController.PostMessage)
				topics.GET("/:topicId/messages", chatController.GetMessages)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationController.GetNotifications)
				notifications.PUT("/:id/read", notificationController.MarkNotificationRead)
			}

			llm := protected.Group("/llm")
			{
				llm.GET("/status", llmController.GetLLMStatus)
				llm.GET("/api-calls", llmController.GetAPICalls)
				llm.DELETE("/api-calls", llmController.ClearAPICalls)
			}
		}
	}
}
