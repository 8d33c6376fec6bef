package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/pavelanni/examgrader/internal/model"
)

const (
	pdfMargin     = 15.0
	pdfLineHeight = 6.0
	pdfGap        = 4.0
)

// WriteReportPDF renders a monthly report as a single A4 document.
// Core PDF fonts only cover cp1252, so other characters are replaced.
func WriteReportPDF(w io.Writer, r model.MonthlyReport, studentName string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(fmt.Sprintf("Monthly report %d-%02d", r.Year, r.Month), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	period := time.Date(r.Year, time.Month(r.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr("Monthly report: "+studentName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, tr(period), "", 1, "C", false, 0, "")
	pdf.Ln(pdfGap)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(60, pdfLineHeight, "Overall percentage:")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, pdfLineHeight, fmt.Sprintf("%d%% (%d marks)", r.OverallPercentage, r.OverallScore))
	pdf.Ln(pdfLineHeight)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(60, pdfLineHeight, "Change from last month:")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, pdfLineHeight, improvementText(r.Improvement))
	pdf.Ln(pdfLineHeight + pdfGap)

	section(pdf, tr, "Assessment", r.MonthlyAssessment)
	section(pdf, tr, "Progress", r.ProgressEvaluation)
	if len(r.RecommendedActions) > 0 {
		section(pdf, tr, "Recommended actions", "- "+strings.Join(r.RecommendedActions, "\n- "))
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Subjects", "", 1, "L", false, 0, "")
	widths := []float64{60, 30, 30}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Subject", "Exams", "Average"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 11)
	for _, sp := range r.SubjectProgress {
		pdf.CellFormat(widths[0], 7, tr(sp.Subject), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprint(sp.ExamCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%d%%", sp.AverageScore), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(pdfGap)

	for _, sp := range r.SubjectProgress {
		body := sp.Analysis
		if len(sp.Strengths) > 0 {
			body += "\nStrengths: " + strings.Join(sp.Strengths, "; ")
		}
		if len(sp.Weaknesses) > 0 {
			body += "\nWeaknesses: " + strings.Join(sp.Weaknesses, "; ")
		}
		section(pdf, tr, sp.Subject, body)
	}

	return pdf.Output(w)
}

func section(pdf *gofpdf.Fpdf, tr func(string) string, title, body string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, pdfLineHeight, tr(body), "", "L", false)
	pdf.Ln(pdfGap)
}

func improvementText(d *int) string {
	if d == nil {
		return "no previous month data"
	}
	if *d > 0 {
		return fmt.Sprintf("+%d%%", *d)
	}
	return fmt.Sprintf("%d%%", *d)
}
