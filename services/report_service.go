package services

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"psychotest/scoring"
)

// reportFont is a UTF-8 font family covering Turkish letters (ş, ğ, ı) that the
// core PDF fonts lack.
const reportFont = "dejavu"

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	dejaVuRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	dejaVuBold []byte
)

// ReportService renders completed results as PDF documents.
type ReportService interface {
	RenderResultPDF(ctx context.Context, userID uint, slug string, w io.Writer) error
}

type reportService struct {
	attempts AttemptService
}

// NewReportService creates a new instance of ReportService.
func NewReportService(attempts AttemptService) ReportService {
	return &reportService{attempts: attempts}
}

func newReportDocument() *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(reportFont, "", dejaVuRegular)
	pdf.AddUTF8FontFromBytes(reportFont, "B", dejaVuBold)
	return pdf
}

func (s *reportService) RenderResultPDF(ctx context.Context, userID uint, slug string, w io.Writer) error {
	view, err := s.attempts.GetResult(ctx, userID, slug)
	if err != nil {
		return err
	}
	if !view.Attempt.IsCompleted {
		return fmt.Errorf("report for test %q: %w", slug, ErrNotCompleted)
	}

	pdf := newReportDocument()
	pdf.SetTitle(view.Test.Name, true)
	pdf.AddPage()

	pdf.SetFont(reportFont, "B", 18)
	pdf.Cell(0, 10, view.Test.Name)
	pdf.Ln(14)

	resultType := ""
	if view.Attempt.ResultType != nil {
		resultType = *view.Attempt.ResultType
	}
	pdf.SetFont(reportFont, "B", 14)
	pdf.Cell(0, 8, "Result: "+resultType)
	pdf.Ln(9)
	if name, ok := view.Scores[scoring.KeyProfileName].(string); ok && name != "" {
		pdf.SetFont(reportFont, "", 12)
		pdf.Cell(0, 8, name)
		pdf.Ln(9)
	}
	if view.Attempt.CompletedAt != nil {
		pdf.SetFont(reportFont, "", 10)
		pdf.Cell(0, 6, "Completed "+view.Attempt.CompletedAt.Format("2006-01-02 15:04"))
		pdf.Ln(10)
	}

	writeScoreTable(pdf, view.Scores)

	if view.Attempt.AIAnalysis != nil && *view.Attempt.AIAnalysis != "" {
		pdf.Ln(6)
		pdf.SetFont(reportFont, "B", 13)
		pdf.Cell(0, 8, "Analysis")
		pdf.Ln(9)
		pdf.SetFont(reportFont, "", 11)
		pdf.MultiCell(0, 6, *view.Attempt.AIAnalysis, "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return nil
}

// writeScoreTable prints numeric scores in key order. Nested values such as the
// answer distribution are printed as one line each.
func writeScoreTable(pdf *gofpdf.Fpdf, scores map[string]interface{}) {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pdf.SetFont(reportFont, "B", 13)
	pdf.Cell(0, 8, "Scores")
	pdf.Ln(9)
	pdf.SetFont(reportFont, "", 11)
	for _, k := range keys {
		switch v := scores[k].(type) {
		case float64, int:
			pdf.CellFormat(60, 7, k, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 7, fmt.Sprintf("%v", v), "1", 1, "R", false, 0, "")
		case map[string]interface{}:
			pdf.MultiCell(0, 7, fmt.Sprintf("%s: %s", k, formatCounts(v)), "", "L", false)
		}
	}
}

func formatCounts(counts map[string]interface{}) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%v", k, counts[k])
	}
	return out
}
