// Package workbook reads and writes the Excel faces of the estimator:
// the reference rate-book workbook uploaded by the office and the
// itemized estimate sheet handed back to the field.
package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/owrk/linercost/internal/estimate"
	"github.com/owrk/linercost/internal/rates"
)

// Sheet names of the reference workbook. The layout is fixed: one header
// row followed by data rows.
const (
	SheetPrices     = "단가"
	SheetRules      = "일위대가"
	SheetSurcharges = "할증"
	SheetOverheads  = "경비"
)

// RowError is a single problem found in an uploaded workbook, addressed
// by sheet and 1-based row number.
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Parse reads a reference workbook into a rate book. It returns row-level
// errors for cells that cannot be interpreted; the returned error is
// reserved for an unreadable workbook or a missing sheet. A book parsed
// with row errors must not be installed.
func Parse(r io.Reader) (rates.Book, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return rates.Book{}, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var book rates.Book
	var rowErrs []RowError

	prices, err := sheetRows(f, SheetPrices)
	if err != nil {
		return rates.Book{}, nil, err
	}
	for _, row := range prices {
		entry, rerr := parsePriceRow(row)
		if rerr != nil {
			rowErrs = append(rowErrs, *rerr)
			continue
		}
		book.Prices = append(book.Prices, entry)
	}

	rules, err := sheetRows(f, SheetRules)
	if err != nil {
		return rates.Book{}, nil, err
	}
	for _, row := range rules {
		rule, rerr := parseRuleRow(row)
		if rerr != nil {
			rowErrs = append(rowErrs, *rerr)
			continue
		}
		book.Rules = append(book.Rules, rule)
	}

	surcharges, err := sheetRows(f, SheetSurcharges)
	if err != nil {
		return rates.Book{}, nil, err
	}
	for _, row := range surcharges {
		rule, rerr := parseSurchargeRow(row)
		if rerr != nil {
			rowErrs = append(rowErrs, *rerr)
			continue
		}
		book.Surcharges = append(book.Surcharges, rule)
	}

	overheads, err := sheetRows(f, SheetOverheads)
	if err != nil {
		return rates.Book{}, nil, err
	}
	for _, row := range overheads {
		rule, rerr := parseOverheadRow(row)
		if rerr != nil {
			rowErrs = append(rowErrs, *rerr)
			continue
		}
		book.Overheads = append(book.Overheads, rule)
	}

	return book, rowErrs, nil
}

// numberedRow carries a data row together with its 1-based position in
// the sheet, so errors can point at the original cell.
type numberedRow struct {
	sheet  string
	number int
	cells  []string
}

func sheetRows(f *excelize.File, sheet string) ([]numberedRow, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("workbook has no %q sheet: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	var out []numberedRow
	for i, cells := range rows[1:] {
		if blankRow(cells) {
			continue
		}
		out = append(out, numberedRow{sheet: sheet, number: i + 2, cells: cells})
	}
	return out, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (r numberedRow) fail(format string, args ...any) *RowError {
	return &RowError{Sheet: r.sheet, Row: r.number, Message: fmt.Sprintf(format, args...)}
}

func (r numberedRow) cell(i int) string {
	if i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

// Price sheet columns: 코드, 품명, 단위, 단가, 구분.
func parsePriceRow(row numberedRow) (estimate.PriceEntry, *RowError) {
	entry := estimate.PriceEntry{
		ID:   row.cell(0),
		Name: row.cell(1),
		Unit: row.cell(2),
	}
	if entry.ID == "" {
		return entry, row.fail("코드 is required")
	}

	price, err := parseNumber(row.cell(3))
	if err != nil || price < 0 {
		return entry, row.fail("단가 %q is not a non-negative number", row.cell(3))
	}
	entry.UnitPrice = price

	resource, ok := resourceFromLabel(row.cell(4))
	if !ok {
		return entry, row.fail("구분 %q is not 재료/노무/장비", row.cell(4))
	}
	entry.Type = resource

	return entry, nil
}

// Rule sheet columns: 관종, 최소구경, 최대구경, 공종, 코드, 수량.
func parseRuleRow(row numberedRow) (estimate.UnitPriceRule, *RowError) {
	rule := estimate.UnitPriceRule{
		WorkCategory: row.cell(3),
		ItemID:       row.cell(4),
	}

	pipe, ok := pipeFromLabel(row.cell(0))
	if !ok {
		return rule, row.fail("관종 %q is not 강관/주철관", row.cell(0))
	}
	rule.PipeType = pipe

	min, err := parseNumber(row.cell(1))
	if err != nil {
		return rule, row.fail("최소구경 %q is not a number", row.cell(1))
	}
	max, err := parseNumber(row.cell(2))
	if err != nil {
		return rule, row.fail("최대구경 %q is not a number", row.cell(2))
	}
	if min > max {
		return rule, row.fail("구경 range [%v, %v] is inverted", min, max)
	}
	rule.DiameterMin, rule.DiameterMax = min, max

	if rule.ItemID == "" {
		return rule, row.fail("코드 is required")
	}

	qty, err := parseNumber(row.cell(5))
	if err != nil || qty <= 0 {
		return rule, row.fail("수량 %q is not a positive number", row.cell(5))
	}
	rule.QuantityPerMeter = qty

	return rule, nil
}

// Surcharge sheet columns: 조건, 설명, 방식, 값, 대상.
func parseSurchargeRow(row numberedRow) (estimate.SurchargeRule, *RowError) {
	rule := estimate.SurchargeRule{
		Condition:   row.cell(0),
		Description: row.cell(1),
		Kind:        estimate.SurchargeKind(row.cell(2)),
		Target:      row.cell(4),
	}
	if rule.Condition == "" {
		return rule, row.fail("조건 is required")
	}
	if rule.Kind != estimate.SurchargePercentage && rule.Kind != estimate.SurchargeFixed {
		return rule, row.fail("방식 %q is not percentage/fixed", row.cell(2))
	}

	value, err := parseNumber(row.cell(3))
	if err != nil {
		return rule, row.fail("값 %q is not a number", row.cell(3))
	}
	if rule.Kind == estimate.SurchargePercentage && value < 1 {
		return rule, row.fail("값 %v models a discount; percentage surcharges must be >= 1", value)
	}
	rule.Value = value

	if rule.Target == "" {
		return rule, row.fail("대상 is required")
	}

	return rule, nil
}

// Overhead sheet columns: 항목, 기준, 요율.
func parseOverheadRow(row numberedRow) (estimate.OverheadRule, *RowError) {
	rule := estimate.OverheadRule{
		Name:  row.cell(0),
		Basis: row.cell(1),
	}
	if rule.Name == "" {
		return rule, row.fail("항목 is required")
	}
	if rule.Basis == "" {
		return rule, row.fail("기준 is required")
	}

	rate, err := parseNumber(row.cell(2))
	if err != nil || rate < 0 {
		return rule, row.fail("요율 %q is not a non-negative number", row.cell(2))
	}
	rule.Rate = rate

	return rule, nil
}

func parseNumber(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(cleaned, 64)
}

func resourceFromLabel(label string) (estimate.ResourceType, bool) {
	switch strings.ToLower(label) {
	case "재료", "재료비", string(estimate.ResourceMaterial):
		return estimate.ResourceMaterial, true
	case "노무", "노무비", string(estimate.ResourceLabor):
		return estimate.ResourceLabor, true
	case "장비", "경비", string(estimate.ResourceEquipment):
		return estimate.ResourceEquipment, true
	}
	return "", false
}

func pipeFromLabel(label string) (estimate.PipeType, bool) {
	switch strings.ToLower(label) {
	case "강관", string(estimate.PipeSteel):
		return estimate.PipeSteel, true
	case "주철관", string(estimate.PipeDuctile):
		return estimate.PipeDuctile, true
	}
	return "", false
}
