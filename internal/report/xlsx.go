package report

import (
	"bytes"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/prozo/dealpulse/internal/analyze"
	"github.com/prozo/dealpulse/internal/model"
)

func renderSheet(name string, header []string, rows [][]string) ([]byte, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(name)
	if err != nil {
		return nil, eris.Wrap(err, "report: add xlsx sheet")
	}

	hr := sheet.AddRow()
	for _, col := range header {
		hr.AddCell().Value = col
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, col := range row {
			r.AddCell().Value = col
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "report: write xlsx")
	}
	return buf.Bytes(), nil
}

// RenderDailyXLSX renders the daily alert sheet as a spreadsheet, same
// columns as the CSV.
func RenderDailyXLSX(deals []*model.Deal) ([]byte, error) {
	rows := make([][]string, 0, len(deals))
	for _, d := range deals {
		rows = append(rows, dailyRow(d))
	}
	return renderSheet("Deal Alerts", dailyHeader, rows)
}

// RenderWeeklyXLSX renders the weekly flagged-deal sheet as a spreadsheet.
func RenderWeeklyXLSX(alerts []analyze.DealAlerts, dealsByID map[string]*model.Deal) ([]byte, error) {
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, weeklyRow(a, dealsByID[a.DealID]))
	}
	return renderSheet("Diligence Gaps", weeklyHeader, rows)
}
