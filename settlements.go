package main

import (
	"net/http"
	"strconv"

	"github.com/Evan-ql/shuadan/models"
	"github.com/Evan-ql/shuadan/utils"
	"github.com/gin-gonic/gin"
)

func createSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSettlement
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var createdBy *int
		if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
			createdBy = &userId
		}

		settlement, err := models.CreateSettlement(c.Request.Context(), input, createdBy)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, settlement)
	}
}

func listSettlementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

		input := models.ListSettlementsInput{
			Page:               page,
			PageSize:           pageSize,
			Search:             c.Query("search"),
			TransferStatus:     c.Query("transferStatus"),
			RegistrationStatus: c.Query("registrationStatus"),
			SettlementStatus:   c.Query("settlementStatus"),
		}
		switch c.Query("isSpecial") {
		case "true":
			v := true
			input.IsSpecial = &v
		case "false":
			v := false
			input.IsSpecial = &v
		}

		result, err := models.ListSettlements(c.Request.Context(), input)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func paramId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 ID"})
		return 0, false
	}
	return id, true
}

func getSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		settlement, err := models.GetSettlementById(c.Request.Context(), id)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, settlement)
	}
}

func updateSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.UpdateSettlementInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		settlement, err := models.UpdateSettlement(c.Request.Context(), id, input)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, settlement)
	}
}

func deleteSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		if err := models.DeleteSettlement(c.Request.Context(), id); err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type toggleSpecialRequest struct {
	IsSpecial *bool `json:"isSpecial" binding:"required"`
}

func toggleSpecialHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var req toggleSpecialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "isSpecial is required"})
			return
		}
		settlement, err := models.ToggleSpecial(c.Request.Context(), id, *req.IsSpecial)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, settlement)
	}
}

func distinctStatusesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := models.GetDistinctStatuses(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, statuses)
	}
}

func settlementStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := models.GetSettlementStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func specialStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := models.GetSpecialStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func untransferredHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.GetUntransferredSettlements(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, items)
	}
}
