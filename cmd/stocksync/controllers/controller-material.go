package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/craftstock/craftstock/cmd/stocksync/helpers"
	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/craftstock/craftstock/cmd/stocksync/postgresql"
	"github.com/craftstock/craftstock/internal"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type materialRequest struct {
	Business   string `uri:"business" binding:"required"`
	MaterialID string `uri:"materialId" binding:"required"`
}

func materialsCacheKey(business string) string {
	return "materials-" + business
}

// ListMaterialsHandler returns all materials of a business. The response is
// served from the tiered cache when present; sync pushes invalidate the key.
func ListMaterialsHandler(store *postgresql.Connection) gin.HandlerFunc {
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

		cached, value := internal.GetTiered(materialsCacheKey(request.Business))
		if cached {
			if body, ok := value.([]byte); ok {
				c.Data(http.StatusOK, "application/json; charset=utf-8", body)
				return
			}
		}

		materials, err := store.ListMaterials(c.Request.Context(), request.Business)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}
		if materials == nil {
			materials = []models.Material{}
		}

		body, err := json.Marshal(materials)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}
		internal.SetTieredShortTerm(materialsCacheKey(request.Business), body)

		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

// GetMaterialHandler returns one material by id.
func GetMaterialHandler(store *postgresql.Connection) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request materialRequest
		err := c.BindUri(&request)
		if err != nil {
			helpers.HandleInvalidInputError(c, err)
			return
		}

		err = helpers.CheckIfUserIsAllowed(c, request.Business)
		if err != nil {
			return
		}

		material, err := store.GetMaterial(c.Request.Context(), request.Business, request.MaterialID)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}
		if material == nil {
			c.JSON(
				http.StatusNotFound, gin.H{
					"error":   "material not found",
					"status":  http.StatusNotFound,
					"message": "The requested material does not exist.",
				})
			return
		}

		c.JSON(http.StatusOK, material)
	}
}

// GetMaterialEventsHandler returns the audit trail of one material, newest
// first.
func GetMaterialEventsHandler(store *postgresql.Connection) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request materialRequest
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

		events, err := store.MaterialEvents(c.Request.Context(), request.Business, request.MaterialID, limit)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}
		if events == nil {
			events = []models.InventoryEvent{}
		}

		c.JSON(http.StatusOK, events)
	}
}

// ListAlertsHandler returns the active low-stock alerts of a business.
func ListAlertsHandler(store *postgresql.Connection) gin.HandlerFunc {
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

		alerts, err := store.ListActiveAlerts(c.Request.Context(), request.Business)
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			return
		}
		if alerts == nil {
			alerts = []models.StockAlert{}
		}

		c.JSON(http.StatusOK, alerts)
	}
}
