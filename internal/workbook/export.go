package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/owrk/linercost/internal/estimate"
)

const estimateSheet = "내역서"

// Estimate renders a calculation result as an xlsx bill of statement and
// returns the file contents.
func Estimate(opts estimate.Options, res estimate.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), estimateSheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	widths := []float64{10, 28, 8, 10, 14, 14, 12, 14}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(estimateSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	cellStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create cell style: %w", err)
	}

	sectionStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
	})
	if err != nil {
		return nil, fmt.Errorf("create section style: %w", err)
	}

	totalStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
	})
	if err != nil {
		return nil, fmt.Errorf("create total style: %w", err)
	}

	row := 1
	setCell(f, row, 0, "PE-Liner 공사비 내역서")
	applyStyle(f, row, 0, 0, titleStyle)
	row += 2

	setCell(f, row, 0, "관종")
	setCell(f, row, 1, string(opts.PipeType))
	setCell(f, row, 2, "구경(mm)")
	setCell(f, row, 3, opts.Diameter)
	setCell(f, row, 4, "연장(m)")
	setCell(f, row, 5, opts.Length)
	setCell(f, row, 6, "입상관")
	if opts.Riser {
		setCell(f, row, 7, "적용")
	} else {
		setCell(f, row, 7, "미적용")
	}
	row += 2

	// Line items (per meter).
	headers := []string{"코드", "품명", "단위", "수량/m", "단가", "금액/m", "구분", "공종"}
	for i, h := range headers {
		setCell(f, row, i, h)
	}
	applyStyle(f, row, 0, len(headers)-1, headerStyle)
	row++

	for _, item := range res.Items {
		setCell(f, row, 0, item.ItemID)
		setCell(f, row, 1, item.Name)
		setCell(f, row, 2, item.Unit)
		setCell(f, row, 3, item.Quantity)
		setCell(f, row, 4, item.UnitPrice)
		setCell(f, row, 5, item.TotalPrice)
		setCell(f, row, 6, string(item.Type))
		setCell(f, row, 7, item.WorkCategory)
		applyStyle(f, row, 0, len(headers)-1, cellStyle)
		row++
	}
	row++

	setCell(f, row, 0, "공종별 집계")
	applyStyle(f, row, 0, 0, sectionStyle)
	row++
	for i, h := range []string{"공종", "재료비", "노무비", "경비", "계"} {
		setCell(f, row, i, h)
	}
	applyStyle(f, row, 0, 4, headerStyle)
	row++
	for _, c := range res.Categories {
		setCell(f, row, 0, c.Category)
		setCell(f, row, 1, c.MaterialCost)
		setCell(f, row, 2, c.LaborCost)
		setCell(f, row, 3, c.EquipmentCost)
		setCell(f, row, 4, c.TotalCost)
		applyStyle(f, row, 0, 4, cellStyle)
		row++
	}
	row++

	setCell(f, row, 0, "직접공사비")
	applyStyle(f, row, 0, 0, sectionStyle)
	row++
	for _, line := range []struct {
		label  string
		amount float64
	}{
		{"재료비", res.DirectMaterialCost},
		{"노무비", res.DirectLaborCost},
		{"경비", res.DirectEquipmentCost},
		{"직접공사비 계", res.TotalDirectCost},
	} {
		setCell(f, row, 0, line.label)
		setCell(f, row, 1, line.amount)
		row++
	}
	row++

	if len(res.Surcharges) > 0 {
		setCell(f, row, 0, "할증")
		applyStyle(f, row, 0, 0, sectionStyle)
		row++
		for _, s := range res.Surcharges {
			setCell(f, row, 0, s.Description)
			setCell(f, row, 1, s.Amount)
			row++
		}
		setCell(f, row, 0, "할증 계")
		setCell(f, row, 1, res.TotalSurchargeCost)
		row += 2
	}

	if len(res.Overheads) > 0 {
		setCell(f, row, 0, "간접비")
		applyStyle(f, row, 0, 0, sectionStyle)
		row++
		for _, o := range res.Overheads {
			setCell(f, row, 0, o.Name)
			setCell(f, row, 1, o.Amount)
			row++
		}
		setCell(f, row, 0, "간접비 계")
		setCell(f, row, 1, res.TotalOverheadCost)
		row += 2
	}

	setCell(f, row, 0, "총 공사비")
	setCell(f, row, 1, res.TotalCost)
	applyStyle(f, row, 0, 1, totalStyle)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, row, col int, value any) {
	name, _ := excelize.ColumnNumberToName(col + 1)
	_ = f.SetCellValue(estimateSheet, fmt.Sprintf("%s%d", name, row), value)
}

func applyStyle(f *excelize.File, row, fromCol, toCol, style int) {
	from, _ := excelize.ColumnNumberToName(fromCol + 1)
	to, _ := excelize.ColumnNumberToName(toCol + 1)
	_ = f.SetCellStyle(estimateSheet, fmt.Sprintf("%s%d", from, row), fmt.Sprintf("%s%d", to, row), style)
}

func thinBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "#999999", Style: 1},
		{Type: "right", Color: "#999999", Style: 1},
		{Type: "top", Color: "#999999", Style: 1},
		{Type: "bottom", Color: "#999999", Style: 1},
	}
}
