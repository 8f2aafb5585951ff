package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/helpers"
	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/craftstock/craftstock/cmd/stocksync/reconciler"
	"github.com/craftstock/craftstock/internal"
	"github.com/gin-gonic/gin"
)

type businessRequest struct {
	Business string `uri:"business" binding:"required"`
}

// PushHandler accepts a batch of client operations and applies them in order.
// The response always has HTTP 200 with per-operation outcomes; only malformed
// requests are rejected at the transport level.
func PushHandler(service *reconciler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request businessRequest
		err := c.BindUri(&request)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}

		err = helpers.CheckIfUserIsAllowed(c, request.Business)
		if err != nil {
			return
		}

		var pushRequest models.PushRequest
		err = c.BindJSON(&pushRequest)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}
		if len(pushRequest.Operations) == 0 {
			helpers.HandleInvalidInputError(c, errors.New("operations must not be empty"))
			return
		}

		userID := c.MustGet(gin.AuthUserKey).(string)
		results := service.ApplyOperations(c.Request.Context(), request.Business, userID, pushRequest.Operations)

		// The batch may have changed materials; drop the cached listing.
		internal.InvalidateTiered(materialsCacheKey(request.Business))

		c.JSON(
			http.StatusOK, models.PushResponse{
				ServerTime: time.Now().UTC(),
				Results:    results,
				Message:    "Sync completed",
			})
	}
}

// PullHandler returns all operations applied after the given since timestamp,
// ascending by appliedAt. since is required and must be RFC3339; clients store
// the serverTime of their last pull and hand it back unchanged.
func PullHandler(service *reconciler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request businessRequest
		err := c.BindUri(&request)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}

		err = helpers.CheckIfUserIsAllowed(c, request.Business)
		if err != nil {
			return
		}

		sinceRaw := c.Query("since")
		if sinceRaw == "" {
			helpers.HandleInvalidInputError(c, errors.New("since query parameter is required"))
			return
		}
		since, err := time.Parse(time.RFC3339, sinceRaw)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}

		operations, err := service.Pull(c.Request.Context(), request.Business, since)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}

		c.JSON(
			http.StatusOK, models.PullResponse{
				ServerTime: time.Now().UTC(),
				Operations: operations,
				Count:      len(operations),
			})
	}
}

// ConflictsHandler returns the newest conflict log entries, joined with the
// material name where the material still exists.
func ConflictsHandler(service *reconciler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request businessRequest
		err := c.BindUri(&request)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}

		err = helpers.CheckIfUserIsAllowed(c, request.Business)
		if err != nil {
			return
		}

		limit := 100
		if limitRaw := c.Query("limit"); limitRaw != "" {
			limit, err = strconv.Atoi(limitRaw)
			if err != nil || limit <= 0 {
				helpers.HandleInvalidInputError(c, errors.New("limit must be a positive integer"))
				return
			}
		}

		conflicts, err := service.Conflicts(c.Request.Context(), request.Business, limit)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}

		c.JSON(
			http.StatusOK, models.ConflictsResponse{
				Conflicts: conflicts,
				Count:     len(conflicts),
			})
	}
}

// DeduplicateHandler collapses duplicated opId groups in the operation log.
// Admin only.
func DeduplicateHandler(service *reconciler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request businessRequest
		err := c.BindUri(&request)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}

		err = helpers.CheckIfUserIsAdmin(c)
		if err != nil {
			return
		}

		removed, err := service.Deduplicate(c.Request.Context(), request.Business)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}

		c.JSON(
			http.StatusOK, models.MaintenanceResponse{
				Message:      "Deduplication completed",
				RemovedCount: removed,
			})
	}
}

// CleanupHandler deletes operation records older than the retention window.
// Admin only; days defaults to 30.
func CleanupHandler(service *reconciler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request businessRequest
		err := c.BindUri(&request)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}

		err = helpers.CheckIfUserIsAdmin(c)
		if err != nil {
			return
		}

		days := 30
		if daysRaw := c.Query("days"); daysRaw != "" {
			days, err = strconv.Atoi(daysRaw)
			if err != nil || days <= 0 {
				helpers.HandleInvalidInputError(c, errors.New("days must be a positive integer"))
				return
			}
		}

		removed, err := service.Cleanup(c.Request.Context(), request.Business, days)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}

		c.JSON(
			http.StatusOK, models.MaintenanceResponse{
				Message:      "Cleanup completed",
				RemovedCount: removed,
			})
	}
}

// StatusHandler reports the server time used as the pull watermark. Clients
// call it once after login to anchor their first incremental pull.
func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request businessRequest
		err := c.BindUri(&request)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}

		err = helpers.CheckIfUserIsAllowed(c, request.Business)
		if err != nil {
			return
		}

		c.JSON(
			http.StatusOK, models.SyncStatusResponse{
				ServerTime: time.Now().UTC(),
				BusinessID: request.Business,
				UserID:     c.MustGet(gin.AuthUserKey).(string),
				Message:    "Sync service online",
			})
	}
}
