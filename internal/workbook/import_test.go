package workbook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/owrk/linercost/internal/estimate"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				t.Fatalf("rename default sheet: %v", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("create sheet %q: %v", name, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("set row %d on %q: %v", i+1, name, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func validSheets() map[string][][]any {
	return map[string][][]any{
		SheetPrices: {
			{"코드", "품명", "단위", "단가", "구분"},
			{"M01", "PE 라이너", "m", 15200, "재료"},
			{"L01", "배관공", "인", 185000, "노무"},
			{"E01", "라이너 반전기", "hr", 42000, "장비"},
		},
		SheetRules: {
			{"관종", "최소구경", "최대구경", "공종", "코드", "수량"},
			{"강관", 80, 200, "관부설접합", "M01", 1.05},
			{"강관", 80, 200, "관부설접합", "L01", 0.038},
			{"주철관", 80, 200, "라이닝", "E01", 0.05},
		},
		SheetSurcharges: {
			{"조건", "설명", "방식", "값", "대상"},
			{"riser", "입상관 시공 할증", "percentage", 1.3, "labor_cost"},
		},
		SheetOverheads: {
			{"항목", "기준", "요율"},
			{"산재보험료", "direct_labor_cost", 0.037},
			{"이윤", "total_direct_cost", 0.15},
		},
	}
}

func TestParse_ValidWorkbook(t *testing.T) {
	book, rowErrs, err := Parse(buildWorkbook(t, validSheets()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("expected no row errors, got %+v", rowErrs)
	}

	if len(book.Prices) != 3 || len(book.Rules) != 3 || len(book.Surcharges) != 1 || len(book.Overheads) != 2 {
		t.Fatalf("unexpected book sizes: %d prices, %d rules, %d surcharges, %d overheads",
			len(book.Prices), len(book.Rules), len(book.Surcharges), len(book.Overheads))
	}

	if book.Prices[0].ID != "M01" || book.Prices[0].Type != estimate.ResourceMaterial || book.Prices[0].UnitPrice != 15200 {
		t.Fatalf("unexpected first price: %+v", book.Prices[0])
	}
	if book.Rules[0].PipeType != estimate.PipeSteel || book.Rules[0].QuantityPerMeter != 1.05 {
		t.Fatalf("unexpected first rule: %+v", book.Rules[0])
	}
	if book.Rules[2].PipeType != estimate.PipeDuctile {
		t.Fatalf("expected 주철관 to map to ductile, got %+v", book.Rules[2])
	}
	if book.Surcharges[0].Kind != estimate.SurchargePercentage || book.Surcharges[0].Value != 1.3 {
		t.Fatalf("unexpected surcharge: %+v", book.Surcharges[0])
	}
	if book.Overheads[1].Rate != 0.15 {
		t.Fatalf("unexpected overhead: %+v", book.Overheads[1])
	}

	if err := book.Validate(); err != nil {
		t.Fatalf("parsed book should validate: %v", err)
	}
}

func TestParse_ThousandSeparatorsAndBlankRows(t *testing.T) {
	sheets := validSheets()
	sheets[SheetPrices] = [][]any{
		{"코드", "품명", "단위", "단가", "구분"},
		{"M01", "PE 라이너", "m", "15,200", "재료"},
		{"", "", "", "", ""},
		{"L01", "배관공", "인", "185,000", "노무"},
		{"E01", "라이너 반전기", "hr", 42000, "장비"},
	}

	book, rowErrs, err := Parse(buildWorkbook(t, sheets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("expected no row errors, got %+v", rowErrs)
	}
	if len(book.Prices) != 3 {
		t.Fatalf("expected blank row skipped, got %d prices", len(book.Prices))
	}
	if book.Prices[0].UnitPrice != 15200 {
		t.Fatalf("expected comma-separated 단가 parsed, got %v", book.Prices[0].UnitPrice)
	}
}

func TestParse_ReportsRowErrorsWithCoordinates(t *testing.T) {
	sheets := validSheets()
	sheets[SheetRules] = [][]any{
		{"관종", "최소구경", "최대구경", "공종", "코드", "수량"},
		{"동관", 80, 200, "관부설접합", "M01", 1.05},
		{"강관", 300, 200, "관부설접합", "M01", 1.05},
		{"강관", 80, 200, "관부설접합", "M01", "abc"},
	}

	book, rowErrs, err := Parse(buildWorkbook(t, sheets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rowErrs) != 3 {
		t.Fatalf("expected 3 row errors, got %+v", rowErrs)
	}
	for i, want := range []int{2, 3, 4} {
		if rowErrs[i].Sheet != SheetRules || rowErrs[i].Row != want {
			t.Fatalf("row error %d = %+v, want sheet %q row %d", i, rowErrs[i], SheetRules, want)
		}
	}
	if len(book.Rules) != 0 {
		t.Fatalf("expected no rules from a bad sheet, got %d", len(book.Rules))
	}
}

func TestParse_RejectsDiscountSurcharge(t *testing.T) {
	sheets := validSheets()
	sheets[SheetSurcharges] = [][]any{
		{"조건", "설명", "방식", "값", "대상"},
		{"riser", "할인", "percentage", 0.8, "labor_cost"},
	}

	_, rowErrs, err := Parse(buildWorkbook(t, sheets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rowErrs) != 1 || !strings.Contains(rowErrs[0].Message, "discount") {
		t.Fatalf("expected a discount row error, got %+v", rowErrs)
	}
}

func TestParse_MissingSheetFails(t *testing.T) {
	sheets := validSheets()
	delete(sheets, SheetOverheads)

	_, _, err := Parse(buildWorkbook(t, sheets))
	if err == nil || !strings.Contains(err.Error(), SheetOverheads) {
		t.Fatalf("expected missing-sheet error naming %q, got %v", SheetOverheads, err)
	}
}

func TestParse_UnreadableFile(t *testing.T) {
	if _, _, err := Parse(bytes.NewReader([]byte("not a workbook"))); err == nil {
		t.Fatal("expected error for a non-xlsx payload")
	}
}
