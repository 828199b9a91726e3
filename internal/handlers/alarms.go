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
	"github.com/kdavid109/UpWake/internal/repository"
	"github.com/kdavid109/UpWake/internal/service"
)

type alarmResponse struct {
	ID        string    `json:"id"`
	Minutes   int       `json:"minutes"`
	Display   string    `json:"display"`
	Label     string    `json:"label"`
	Days      []int     `json:"days"`
	Enabled   bool      `json:"enabled"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toAlarmResponse(alarm models.Alarm) alarmResponse {
	days := make([]int, 0, len(alarm.Days))
	for _, d := range alarm.Days {
		days = append(days, int(d))
	}
	return alarmResponse{
		ID:        alarm.ID,
		Minutes:   alarm.Minutes,
		Display:   alarm.Display(),
		Label:     alarm.Label,
		Days:      days,
		Enabled:   alarm.Enabled,
		ImageURL:  alarm.ImageURL,
		CreatedAt: alarm.CreatedAt,
	}
}

type createAlarmRequest struct {
	Minutes int    `form:"minutes" json:"minutes" binding:"min=0,max=1439"`
	Label   string `form:"label" json:"label"`
	Days    []int  `form:"days" json:"days"`
	Enabled bool   `form:"enabled" json:"enabled"`
}

func parseDays(ints []int) []models.Weekday {
	days := make([]models.Weekday, 0, len(ints))
	for _, v := range ints {
		days = append(days, models.Weekday(v))
	}
	return days
}

func (h HandlerSet) CreateAlarm(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createAlarmRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Optional photo attachment rides along in the same multipart form. A
	// missing attachment is fine; a present-but-unreadable one is not.
	var image []byte
	file, _, err := c.Request.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		image, err = io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read_image_failed"})
			return
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "read_image_failed"})
		return
	}

	alarm, err := h.alarmService.Create(c.Request.Context(), service.CreateAlarmInput{
		UserID:  user.ID,
		Minutes: req.Minutes,
		Label:   req.Label,
		Days:    parseDays(req.Days),
		Enabled: req.Enabled,
		Image:   image,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("create alarm failed")
		c.JSON(alarmStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"alarm": toAlarmResponse(alarm)})
}

func alarmStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidAlarmTime), errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrAlarmNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h HandlerSet) ListAlarms(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	alarms, err := h.alarmService.List(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]alarmResponse, 0, len(alarms))
	for _, alarm := range alarms {
		items = append(items, toAlarmResponse(alarm))
	}

	c.JSON(http.StatusOK, gin.H{"alarms": items})
}

// AlarmEvents streams full alarm-list snapshots over SSE.
func (h HandlerSet) AlarmEvents(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Writer.Header().Set("Cache-Control", "no-cache")

	snapshots := h.hub.Snapshots(c.Request.Context(), livelist.AlarmsChannel(user.ID), func(ctx context.Context) (any, error) {
		alarms, err := h.alarmService.List(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		items := make([]alarmResponse, 0, len(alarms))
		for _, alarm := range alarms {
			items = append(items, toAlarmResponse(alarm))
		}
		return items, nil
	})

	c.Stream(func(w io.Writer) bool {
		snapshot, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("alarms", snapshot)
		return true
	})
}

type updateAlarmRequest struct {
	Minutes int    `json:"minutes" binding:"min=0,max=1439"`
	Label   string `json:"label"`
	Days    []int  `json:"days"`
}

func (h HandlerSet) UpdateAlarm(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alarm, err := h.alarmService.Update(c.Request.Context(), service.UpdateAlarmInput{
		UserID:  user.ID,
		ID:      c.Param("id"),
		Minutes: req.Minutes,
		Label:   req.Label,
		Days:    parseDays(req.Days),
	})
	if err != nil {
		c.JSON(alarmStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alarm": toAlarmResponse(alarm)})
}

type toggleAlarmRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h HandlerSet) ToggleAlarm(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req toggleAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.alarmService.Toggle(c.Request.Context(), user.ID, c.Param("id"), *req.Enabled); err != nil {
		c.JSON(alarmStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) DeleteAlarm(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.alarmService.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		c.JSON(alarmStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
