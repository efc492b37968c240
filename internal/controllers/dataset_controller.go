package controllers

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/datasight/backend/internal/logger"
	"github.com/datasight/backend/internal/models"
	"github.com/datasight/backend/internal/services"
	"github.com/datasight/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DatasetController struct {
	db        *gorm.DB
	blobs     storage.BlobStore
	ingestion *services.IngestionService
}

func NewDatasetController(db *gorm.DB, blobs storage.BlobStore, ingestion *services.IngestionService) *DatasetController {
	return &DatasetController{db: db, blobs: blobs, ingestion: ingestion}
}

// UploadDataset accepts a CSV upload, persists the raw blob and the
// dataset record, then hands off to the ingestion pipeline.
func (dc *DatasetController) UploadDataset(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	ownerID := userID.(uint)

	file, err := c.FormFile("dataset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only CSV files are supported"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	datasetID := uuid.New()
	blobPath := storage.RawBlobPath(ownerID, datasetID.String(), file.Filename)

	if err := dc.blobs.Save(blobPath, data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded file"})
		return
	}

	dataset := models.Dataset{
		ID:          datasetID,
		OwnerID:     ownerID,
		Filename:    file.Filename,
		Status:      models.DatasetStatusUploaded,
		RawBlobPath: blobPath,
	}
	if err := dc.db.Create(&dataset).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save dataset record"})
		return
	}

	go func() {
		if err := dc.ingestion.ProcessUpload(blobPath); err != nil {
			logger.WithDataset(datasetID.String(), file.Filename).
				Errorf("Background ingestion failed: %v", err)
		}
	}()

	c.JSON(http.StatusCreated, gin.H{
		"message": "Dataset uploaded successfully",
		"dataset": dataset,
	})
}

// GetDatasets returns the caller's datasets, newest first.
func (dc *DatasetController) GetDatasets(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset := (page - 1) * limit

	var datasets []models.Dataset
	if err := dc.db.Where("owner_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&datasets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch datasets"})
		return
	}

	var total int64
	dc.db.Model(&models.Dataset{}).Where("owner_id = ?", userID).Count(&total)

	c.JSON(http.StatusOK, gin.H{
		"datasets": datasets,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetDataset returns one dataset with its status and derived artifacts,
// which is what upload clients poll while ingestion runs.
func (dc *DatasetController) GetDataset(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var dataset models.Dataset
	if err := dc.db.Where("id = ? AND owner_id = ?", c.Param("id"), userID).
		First(&dataset).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dataset": dataset})
}
