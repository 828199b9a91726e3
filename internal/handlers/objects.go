package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kdavid109/UpWake/internal/livelist"
	"github.com/kdavid109/UpWake/internal/models"
	"github.com/kdavid109/UpWake/internal/removal"
	"github.com/kdavid109/UpWake/internal/repository"
	"github.com/kdavid109/UpWake/internal/service"
)

type objectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StoragePath string    `json:"storagePath"`
	ImageURL    string    `json:"imageUrl"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Processed   bool      `json:"processed"`
	Status      string    `json:"status"`
	ScannedAt   time.Time `json:"scannedAt"`
}

func toObjectResponse(obj models.ScannedObject) objectResponse {
	return objectResponse{
		ID:          obj.ID,
		Name:        obj.Name,
		StoragePath: obj.StoragePath,
		ImageURL:    obj.ImageURL,
		ContentType: obj.ContentType,
		SizeBytes:   obj.SizeBytes,
		Processed:   obj.Processed,
		Status:      string(obj.Status),
		ScannedAt:   obj.ScannedAt,
	}
}

func (h HandlerSet) UploadObject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read_image_failed"})
		return
	}

	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name_required"})
		return
	}

	obj, err := h.scanService.Upload(c.Request.Context(), service.UploadInput{
		UserID: user.ID,
		Name:   name,
		Data:   data,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("object upload failed")
		c.JSON(uploadStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"object": toObjectResponse(obj)})
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, removal.ErrServiceRejected):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrUploadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h HandlerSet) ListObjects(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	objects, err := h.scanService.List(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]objectResponse, 0, len(objects))
	for _, obj := range objects {
		items = append(items, toObjectResponse(obj))
	}

	c.JSON(http.StatusOK, gin.H{"objects": items})
}

// ObjectEvents streams full catalog snapshots over SSE: one event now, one
// after every mutation.
func (h HandlerSet) ObjectEvents(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Writer.Header().Set("Cache-Control", "no-cache")

	snapshots := h.hub.Snapshots(c.Request.Context(), livelist.ObjectsChannel(user.ID), func(ctx context.Context) (any, error) {
		objects, err := h.scanService.List(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		items := make([]objectResponse, 0, len(objects))
		for _, obj := range objects {
			items = append(items, toObjectResponse(obj))
		}
		return items, nil
	})

	c.Stream(func(w io.Writer) bool {
		snapshot, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("objects", snapshot)
		return true
	})
}

func (h HandlerSet) DeleteObject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := c.Param("id")
	if err := h.scanService.Delete(c.Request.Context(), user.ID, id); err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "object_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
