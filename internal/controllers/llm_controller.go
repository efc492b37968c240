package controllers

import (
	"net/http"

	"github.com/datasight/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type LLMController struct {
	llmService *services.LLMService
}

func NewLLMController(llmService *services.LLMService) *LLMController {
	return &LLMController{llmService: llmService}
}

// GetLLMStatus probes the generation service.
func (lc *LLMController) GetLLMStatus(c *gin.Context) {
	if err := lc.llmService.CheckLLMHealth(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"model":  lc.llmService.GetModel(),
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"model":  lc.llmService.GetModel(),
	})
}

// GetAPICalls returns the recent LLM call history.
func (lc *LLMController) GetAPICalls(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"apiCalls": lc.llmService.GetAPICalls()})
}

// ClearAPICalls wipes the LLM call history.
func (lc *LLMController) ClearAPICalls(c *gin.Context) {
	lc.llmService.ClearAPICalls()
	c.JSON(http.StatusOK, gin.H{"success": true})
}
