package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"robot-report-sync/internal/domain"

	"github.com/xuri/excelize/v2"
)

// exportMaxRows 单次导出的行数上限
const exportMaxRows = 10000

// ReportExportHeader 报告导出表头
var ReportExportHeader = []string{
	"Report ID",
	"Robot SN",
	"Status",
	"Start Time",
	"End Time",
	"Clean Time (s)",
	"Task Area (m²)",
	"Clean Area (m²)",
	"Mode",
	"Battery Cost (%)",
	"Water Cost (ml)",
	"Map Name",
	"Remark",
}

// GenerateReportExport 生成清洁报告导出 Excel 文件
func GenerateReportExport(reports []*domain.CleanReport) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Clean Reports"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range ReportExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 写入数据行
	for row, report := range reports {
		values := []any{
			report.ReportID,
			report.RobotSN,
			report.Status,
			formatUnix(report.StartTime),
			formatUnix(report.EndTime),
			nullableInt(report.CleanTime.Int64, report.CleanTime.Valid),
			nullableFloat(report.TaskArea.Float64, report.TaskArea.Valid),
			nullableFloat(report.CleanArea.Float64, report.CleanArea.Valid),
			report.Mode,
			nullableInt(report.CostBattery.Int64, report.CostBattery.Valid),
			nullableInt(report.CostWater.Int64, report.CostWater.Valid),
			report.MapName,
			report.Remark.String,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if value == nil {
				continue // 缺失的遥测字段导出为空单元格
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

func nullableInt(v int64, valid bool) any {
	if !valid {
		return nil
	}
	return v
}

func nullableFloat(v float64, valid bool) any {
	if !valid {
		return nil
	}
	return v
}
