// Package importer loads materials and their opening lots from an .xlsx workbook.
//
// The workbook has two sheets:
//
//	Materials: Name | Kind | Sold directly | Measurement unit | Measurement value | Unit cost
//	Lots:      Material | Quantity | Cost price | Received at | Batch ref
//
// The first row of each sheet is a header. Lots reference materials by name.
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
)

const (
	SheetMaterials = "Materials"
	SheetLots      = "Lots"
)

var (
	materialsHeader = []any{"Name", "Kind", "Sold directly", "Measurement unit", "Measurement value", "Unit cost"}
	lotsHeader      = []any{"Material", "Quantity", "Cost price", "Received at", "Batch ref"}
)

// MaterialRow is one row of the Materials sheet.
type MaterialRow struct {
	Row              int
	Name             string
	Kind             material.Kind
	SoldDirectly     bool
	MeasurementUnit  string
	MeasurementValue *types.Quantity
	UnitCost         types.Money
}

// LotRow is one row of the Lots sheet.
type LotRow struct {
	Row        int
	Material   string
	Quantity   types.Quantity
	CostPrice  types.Money
	ReceivedAt time.Time
	BatchRef   string
}

// Workbook is the parsed content of an import file.
type Workbook struct {
	Materials []MaterialRow
	Lots      []LotRow
}

// RowError reports a malformed cell.
type RowError struct {
	Sheet  string
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d, %s: %v", e.Sheet, e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Read parses a workbook. Empty rows are skipped.
func Read(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	materialRows, err := f.GetRows(SheetMaterials)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", SheetMaterials, err)
	}
	lotRows, err := f.GetRows(SheetLots)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", SheetLots, err)
	}

	wb := &Workbook{}
	names := make(map[string]int)

	for i, row := range skipHeader(materialRows) {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		m, err := parseMaterialRow(rowNum, row)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(m.Name)
		if prev, ok := names[key]; ok {
			return nil, &RowError{Sheet: SheetMaterials, Row: rowNum, Column: "Name",
				Err: fmt.Errorf("duplicate of row %d", prev)}
		}
		names[key] = rowNum
		wb.Materials = append(wb.Materials, m)
	}

	for i, row := range skipHeader(lotRows) {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		l, err := parseLotRow(rowNum, row)
		if err != nil {
			return nil, err
		}
		if _, ok := names[strings.ToLower(l.Material)]; !ok {
			return nil, &RowError{Sheet: SheetLots, Row: rowNum, Column: "Material",
				Err: fmt.Errorf("unknown material %q", l.Material)}
		}
		wb.Lots = append(wb.Lots, l)
	}

	return wb, nil
}

func parseMaterialRow(rowNum int, row []string) (MaterialRow, error) {
	fail := func(col string, err error) (MaterialRow, error) {
		return MaterialRow{}, &RowError{Sheet: SheetMaterials, Row: rowNum, Column: col, Err: err}
	}

	m := MaterialRow{
		Row:             rowNum,
		Name:            cell(row, 0),
		Kind:            material.KindRawMaterial,
		MeasurementUnit: cell(row, 3),
		UnitCost:        types.ZeroMoney(),
	}
	if m.Name == "" {
		return fail("Name", fmt.Errorf("required"))
	}

	if v := cell(row, 1); v != "" {
		switch k := material.Kind(strings.ToLower(v)); k {
		case material.KindRawMaterial, material.KindFinishedGood:
			m.Kind = k
		default:
			return fail("Kind", fmt.Errorf("unknown kind %q", v))
		}
	}

	if v := cell(row, 2); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fail("Sold directly", err)
		}
		m.SoldDirectly = b
	}

	if v := cell(row, 4); v != "" {
		q, err := types.ParseQuantity(normalizeNumber(v))
		if err != nil {
			return fail("Measurement value", err)
		}
		m.MeasurementValue = &q
	}

	if v := cell(row, 5); v != "" {
		c, err := types.NewMoneyFromString(normalizeNumber(v))
		if err != nil {
			return fail("Unit cost", err)
		}
		m.UnitCost = c
	}

	return m, nil
}

func parseLotRow(rowNum int, row []string) (LotRow, error) {
	fail := func(col string, err error) (LotRow, error) {
		return LotRow{}, &RowError{Sheet: SheetLots, Row: rowNum, Column: col, Err: err}
	}

	l := LotRow{Row: rowNum, Material: cell(row, 0), BatchRef: cell(row, 4)}
	if l.Material == "" {
		return fail("Material", fmt.Errorf("required"))
	}

	q, err := types.ParseQuantity(normalizeNumber(cell(row, 1)))
	if err != nil {
		return fail("Quantity", err)
	}
	if !q.IsPositive() {
		return fail("Quantity", fmt.Errorf("must be positive, got %s", q))
	}
	l.Quantity = q

	c, err := types.NewMoneyFromString(normalizeNumber(cell(row, 2)))
	if err != nil {
		return fail("Cost price", err)
	}
	if c.IsNegative() {
		return fail("Cost price", fmt.Errorf("cannot be negative"))
	}
	l.CostPrice = c

	if v := cell(row, 3); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return fail("Received at", err)
		}
		l.ReceivedAt = t
	}

	return l, nil
}

// WriteTemplate writes an empty workbook with both sheets and their headers.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetMaterials); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetLots); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetMaterials, "A1", &materialsHeader); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetLots, "A1", &lotsHeader); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func skipHeader(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// normalizeNumber accepts a decimal comma.
func normalizeNumber(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
