package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) AdminListObjects(c *gin.Context) {
	limit := 50
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	objects, err := h.objects.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]map[string]interface{}, 0, len(objects))
	for _, obj := range objects {
		items = append(items, map[string]interface{}{
			"id":          obj.ID,
			"userId":      obj.UserID,
			"name":        obj.Name,
			"storagePath": obj.StoragePath,
			"status":      obj.Status,
			"processed":   obj.Processed,
			"sizeBytes":   obj.SizeBytes,
			"scannedAt":   obj.ScannedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
	})
}
