package chuangzhi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/models"
	"github.com/Evan-ql/shuadan/utils"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
)

const syncLockKey = "chuangzhi:sync"
const syncLockTTL = 10 * time.Minute

func GetTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := models.GetSetting(c.Request.Context(), models.SettingKeyChuangzhiToken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if token == "" {
			c.JSON(http.StatusOK, gin.H{"token": nil, "hasToken": false})
			return
		}
		// Never echo the credential back out.
		c.JSON(http.StatusOK, gin.H{"token": "已配置", "hasToken": true})
	}
}

type saveTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func SaveTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req saveTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Token不能为空"})
			return
		}
		if err := models.SetSetting(c.Request.Context(), models.SettingKeyChuangzhiToken, req.Token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func VerifyTokenHandler(service *SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, service.VerifyStoredToken(c.Request.Context()))
	}
}

type syncRequest struct {
	Mode models.SyncType `json:"mode" binding:"required,oneof=normal special"`
}

// SyncHandler runs the full reconciliation flow. An advisory redis
// lock rejects a second sync while one is still running; without
// redis the flow runs unguarded, matching single-operator usage.
func SyncHandler(service *SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(c.Request.Context(), syncLockKey, syncLockTTL, nil)
			if err == redislock.ErrNotObtained {
				c.JSON(http.StatusConflict, gin.H{"error": "同步正在进行中，请稍后再试"})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			defer lock.Release(c.Request.Context())
		}

		c.JSON(http.StatusOK, service.ExecuteSyncFlow(c.Request.Context(), req.Mode))
	}
}

type retrySyncRequest struct {
	SyncFailureId int `json:"syncFailureId" binding:"required"`
	SettlementId  int `json:"settlementId" binding:"required"`
}

func RetrySyncHandler(service *SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req retrySyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		settlement, err := models.GetSettlementById(c.Request.Context(), req.SettlementId)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "订单记录不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		result := service.RetrySingleSync(c.Request.Context(), req.SettlementId, req.SyncFailureId, *settlement)
		c.JSON(http.StatusOK, result)
	}
}

func ListFailuresHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

		result, err := models.ListSyncFailures(c.Request.Context(), models.ListSyncFailuresInput{
			Page:     page,
			PageSize: pageSize,
			Status:   c.Query("status"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func IgnoreFailureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		err = models.UpdateSyncFailureStatus(c.Request.Context(), id, models.SyncFailureStatusIgnored)
		if err != nil {
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

func DeleteFailureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		err = models.DeleteSyncFailure(c.Request.Context(), id)
		if err != nil {
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
