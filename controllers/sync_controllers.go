package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type SyncController struct {
	Queue *services.SyncQueueService
}

func NewSyncController(queue *services.SyncQueueService) *SyncController {
	return &SyncController{Queue: queue}
}

func (sc *SyncController) Push(c *gin.Context) {
	var req struct {
		DeviceID string                    `json:"device_id" binding:"required"`
		Records  []services.SyncPushRecord `json:"records" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	records, err := sc.Queue.Push(c.Request.Context(), middlewares.CurrentOutlet(c).ID, req.DeviceID, c.GetString(middlewares.CtxRole), req.Records)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sync records processed", records)
}

// Pull returns what changed since ?since= (RFC 3339). Without it everything is returned.
func (sc *SyncController) Pull(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(c, utils.NewValidationError("since must be an RFC 3339 timestamp"))
			return
		}
		since = t
	}
	res, err := sc.Queue.Pull(c.Request.Context(), middlewares.CurrentOutlet(c).ID, c.Query("device_id"), since)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Changes since last sync", res)
}

func (sc *SyncController) GetRecords(c *gin.Context) {
	p := utils.GetPagination(c)
	filter := services.SyncRecordFilter{
		Status:   c.Query("status"),
		DeviceID: c.Query("device_id"),
	}
	if raw := c.Query("conflict"); raw != "" {
		conflict, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondError(c, utils.NewValidationError("conflict must be true or false"))
			return
		}
		filter.Conflict = &conflict
	}
	records, total, err := sc.Queue.List(c.Request.Context(), middlewares.CurrentOutlet(c).ID, filter, p)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondPaginated(c, http.StatusOK, "List of sync records", records, p.WithTotal(total))
}

func (sc *SyncController) Resolve(c *gin.Context) {
	recordID, err := paramID(c, "record_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		Strategy string `json:"strategy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	rec, err := sc.Queue.Resolve(c.Request.Context(), middlewares.CurrentOutlet(c).ID, recordID, req.Strategy, middlewares.CurrentUserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sync conflict resolved", rec)
}
