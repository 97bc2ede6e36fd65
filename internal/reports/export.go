package reports

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/alfares/bakery-backend/pkg/response"
)

// Export streams the report as an .xlsx workbook. Filters arrive as
// query params so the link can be opened directly from a browser.
func (h *Handler) Export(c *gin.Context) {
	var req Request
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	report, err := BuildReport(h.db, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Report"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, header := range report.Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for rowIdx, row := range report.Rows {
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil && len(report.Headers) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, 1)
		last, _ := excelize.CoordinatesToCellName(len(report.Headers), 1)
		f.SetCellStyle(sheet, first, last, style)
	}

	filename := fmt.Sprintf("%s-report-%s-%s.xlsx", report.ReportType, report.StartDate, report.EndDate)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := f.Write(c.Writer); err != nil {
		response.Error(c, err)
	}
}
