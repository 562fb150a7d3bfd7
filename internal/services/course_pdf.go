package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/gosimple/slug"

	types "github.com/yungbote/studyforge-backend/internal/domain"
)

const (
	pdfFont       = "Helvetica"
	pdfLineHeight = 6.0
)

func coursePDFFilename(title string) string {
	s := slug.Make(title)
	if s == "" {
		s = "course"
	}
	return s + ".pdf"
}

// renderCoursePDF lays out a title page, a table of contents mirroring the
// outline, then one block per content entry in content order. The output
// depends only on the course, so repeated renders are byte-identical.
func renderCoursePDF(course *types.Course) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetCreationDate(course.UpdatedAt)
	pdf.SetModificationDate(course.UpdatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(course.Title, true)
	pdf.SetAuthor("StudyForge", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	// Title page
	settings := course.CourseSettings()
	pdf.AddPage()
	pdf.Ln(60)
	pdf.SetFont(pdfFont, "B", 26)
	pdf.MultiCell(0, 12, tr(course.Title), "", "C", false)
	if d := strings.TrimSpace(course.Description); d != "" {
		pdf.Ln(6)
		pdf.SetFont(pdfFont, "", 12)
		pdf.MultiCell(0, pdfLineHeight, tr(d), "", "C", false)
	}
	pdf.Ln(10)
	pdf.SetFont(pdfFont, "I", 10)
	pdf.MultiCell(0, pdfLineHeight, tr(fmt.Sprintf("Level: %s  |  Detail: %s", settings.Level, settings.DetailLevel)), "", "C", false)

	// Table of contents
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 18)
	pdf.CellFormat(0, 10, "Contents", "", 1, "L", false, 0, "")
	pdf.Ln(2)
	for i, sec := range course.Outline {
		pdf.SetFont(pdfFont, "B", 11)
		pdf.MultiCell(0, pdfLineHeight, tr(fmt.Sprintf("%d. %s", i+1, sec.Section)), "", "L", false)
		pdf.SetFont(pdfFont, "", 10)
		for j, sub := range sec.Subsections {
			pdf.SetX(28)
			pdf.MultiCell(0, pdfLineHeight, tr(fmt.Sprintf("%d.%d %s", i+1, j+1, sub)), "", "L", false)
		}
	}

	// Content
	sectionNo, subNo := 0, 0
	for _, entry := range course.Content {
		if entry.Subsection == nil {
			sectionNo++
			subNo = 0
			pdf.AddPage()
			pdf.SetFont(pdfFont, "B", 16)
			pdf.MultiCell(0, 9, tr(fmt.Sprintf("%d. %s", sectionNo, entry.Section)), "", "L", false)
		} else {
			subNo++
			pdf.Ln(3)
			pdf.SetFont(pdfFont, "B", 13)
			pdf.MultiCell(0, 8, tr(fmt.Sprintf("%d.%d %s", sectionNo, subNo, *entry.Subsection)), "", "L", false)
		}
		pdf.Ln(1)
		pdf.SetFont(pdfFont, "", 11)
		pdf.MultiCell(0, pdfLineHeight, tr(plainText(entry.Explanation)), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// plainText drops the markdown markers the core PDF fonts cannot show.
func plainText(md string) string {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "#") {
			line = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "__", "")
		line = strings.ReplaceAll(line, "`", "")
		if strings.HasPrefix(strings.TrimSpace(line), "- ") || strings.HasPrefix(strings.TrimSpace(line), "* ") {
			line = "  " + string(rune(0x2022)) + " " + strings.TrimSpace(line)[2:]
		}
		lines[i] = line
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
