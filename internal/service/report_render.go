package service

import (
	"bytes"
	"comic_english_backend/internal/util"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// 报表输出格式
const (
	FormatJSON  = "json"
	FormatPDF   = "pdf"
	FormatExcel = "excel"
)

const (
	MimePDF  = "application/pdf"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RenderedReport 文件形式的报表
type RenderedReport struct {
	Body        []byte
	ContentType string
	Filename    string
}

// RenderReport 输出 pdf 或 excel 文件；json 由控制器直接返回 Report.Data
func RenderReport(r *Report, format string) (*RenderedReport, error) {
	stamp := r.GeneratedAt.Format("20060102_150405")
	switch format {
	case FormatPDF:
		body, err := RenderPDF(r)
		if err != nil {
			return nil, err
		}
		return &RenderedReport{Body: body, ContentType: MimePDF, Filename: fmt.Sprintf("%s_%s.pdf", r.Type, stamp)}, nil
	case FormatExcel:
		body, err := RenderExcel(r)
		if err != nil {
			return nil, err
		}
		return &RenderedReport{Body: body, ContentType: MimeXLSX, Filename: fmt.Sprintf("%s_%s.xlsx", r.Type, stamp)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", util.ErrInvalidQuery, format)
	}
}

const (
	pdfMargin     = 10.0
	pdfLineHeight = 7.0
)

func RenderPDF(r *Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(r.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, "Generated at "+r.GeneratedAt.Format(util.TimeFormat), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(r.Summary) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
		for _, m := range r.Summary {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(60, 6, tr(m.Label), "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, tr(m.Value), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	pageWidth, _ := pdf.GetPageSize()
	usable := pageWidth - 2*pdfMargin
	for _, t := range r.Tables {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr(t.Name), "", 1, "L", false, 0, "")
		if len(t.Headers) == 0 {
			continue
		}
		width := usable / float64(len(t.Headers))

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 230, 241)
		for _, h := range t.Headers {
			pdf.CellFormat(width, pdfLineHeight, fitText(pdf, tr(h), width), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		if len(t.Rows) == 0 {
			pdf.CellFormat(usable, pdfLineHeight, "No data", "1", 1, "C", false, 0, "")
		}
		for _, row := range t.Rows {
			for i := range t.Headers {
				cell := ""
				if i < len(row) {
					cell = row[i]
				}
				pdf.CellFormat(width, pdfLineHeight, fitText(pdf, tr(cell), width), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fitText 截断超出单元格宽度的文本
func fitText(pdf *gofpdf.Fpdf, s string, width float64) string {
	const padding = 2.0
	if pdf.GetStringWidth(s) <= width-padding {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width-padding {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

func RenderExcel(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	f.SetCellValue(summary, "A1", r.Title)
	f.SetCellStyle(summary, "A1", "A1", bold)
	f.SetCellValue(summary, "A2", "Generated at")
	f.SetCellValue(summary, "B2", r.GeneratedAt.Format(util.TimeFormat))
	for i, m := range r.Summary {
		row := i + 4
		f.SetCellValue(summary, fmt.Sprintf("A%d", row), m.Label)
		f.SetCellValue(summary, fmt.Sprintf("B%d", row), m.Value)
	}
	f.SetColWidth(summary, "A", "B", 28)

	for i, t := range r.Tables {
		sheet := sheetName(t.Name, i)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		for col, h := range t.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheet, cell, h)
		}
		if n := len(t.Headers); n > 0 {
			last, _ := excelize.CoordinatesToCellName(n, 1)
			f.SetCellStyle(sheet, "A1", last, header)
			lastCol, _ := excelize.ColumnNumberToName(n)
			f.SetColWidth(sheet, "A", lastCol, 18)
		}
		for rowIdx, row := range t.Rows {
			for col, v := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
				f.SetCellValue(sheet, cell, v)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sheetName 工作表名最长 31 个字符且不能重复
func sheetName(name string, idx int) string {
	if name == "" || name == "Summary" {
		name = fmt.Sprintf("Table %d", idx+1)
	}
	r := []rune(name)
	if len(r) > 31 {
		r = r[:31]
	}
	return string(r)
}
