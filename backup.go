package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/models"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

func backupExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := models.ExportAllData(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, data)
	}
}

type backupImportRequest struct {
	Data models.BackupData `json:"data"`
}

func backupImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req backupImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的备份数据"})
			return
		}
		if req.Data.Settlements == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的备份数据", "message": "请提供包含 data.settlements 的 JSON 数据"})
			return
		}

		stats, err := models.ImportAllData(c.Request.Context(), req.Data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "数据导入成功",
			"stats":   stats,
		})
	}
}

const settlementSheet = "结算明细"

var settlementHeaders = []string{
	"接单日期", "单号", "群名", "客户名", "客服",
	"原价", "加价后总价", "应转", "实转",
	"转账状态", "登记状态", "结算状态", "特殊单", "备注",
}

// backupExportXlsxHandler renders all settlements as a spreadsheet
// for offline bookkeeping.
func backupExportXlsxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := models.ExportAllData(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		defer f.Close()
		index, err := f.NewSheet(settlementSheet)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		f.SetActiveSheet(index)
		f.DeleteSheet("Sheet1")

		for col, header := range settlementHeaders {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(settlementSheet, cell, header)
		}

		for i, s := range data.Settlements {
			row := i + 2
			values := []interface{}{
				formatOrderDate(s.OrderDate),
				s.OrderNo,
				s.GroupName,
				s.CustomerName,
				s.CustomerService,
				s.OriginalPrice,
				s.TotalPrice,
				s.ShouldTransfer,
				s.ActualTransfer,
				string(s.TransferStatus),
				string(s.RegistrationStatus),
				string(s.SettlementStatus),
				boolToFlag(s.IsSpecial),
				s.Remark,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(settlementSheet, cell, v)
			}
		}

		c.Header("Content-Disposition",
			fmt.Sprintf(`attachment; filename="settlements-%s.xlsx"`, time.Now().Format("20060102")))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "backup", "backupExportXlsxHandler", "write", nil, err)
		}
	}
}

// backupImportXlsxHandler batch-creates settlements from an uploaded
// spreadsheet laid out like the export. Rows missing a group name are
// skipped and counted.
func backupImportXlsxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请上传 xlsx 文件"})
			return
		}
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer src.Close()

		f, err := excelize.OpenReader(src)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无法解析 xlsx 文件"})
			return
		}
		defer f.Close()

		sheet := settlementSheet
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			sheet = f.GetSheetName(0)
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		created := 0
		skipped := 0
		for i, row := range rows {
			if i == 0 {
				continue
			}
			input := rowToSettlement(row)
			if input.GroupName == "" {
				skipped++
				continue
			}
			if _, err := models.CreateSettlement(c.Request.Context(), input, nil); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			created++
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"created": created,
			"skipped": skipped,
		})
	}
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

func rowToSettlement(row []string) models.NewSettlement {
	input := models.NewSettlement{
		OrderNo:         cellAt(row, 1),
		GroupName:       cellAt(row, 2),
		CustomerName:    cellAt(row, 3),
		CustomerService: cellAt(row, 4),
		OriginalPrice:   cellAt(row, 5),
		TotalPrice:      cellAt(row, 6),
		ShouldTransfer:  cellAt(row, 7),
		ActualTransfer:  cellAt(row, 8),
		IsSpecial:       cellAt(row, 12) == "是",
		Remark:          cellAt(row, 13),
	}
	if raw := cellAt(row, 0); raw != "" {
		if t, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
			ms := t.UnixMilli()
			input.OrderDate = &ms
		}
	}
	return input
}

func formatOrderDate(ms *int64) string {
	if ms == nil || *ms == 0 {
		return ""
	}
	return time.UnixMilli(*ms).Format("2006-01-02")
}

func boolToFlag(b bool) string {
	if b {
		return "是"
	}
	return ""
}
