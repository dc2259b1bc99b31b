package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicereport-platform/internal/conversation"

	"github.com/go-pdf/fpdf"
)

var ErrEmptyInput = errors.New("report: transcript and summary are required")

// PDFRenderer renders the conversation report document.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render produces the PDF bytes for a conversation record and its summary.
func (r *PDFRenderer) Render(ctx context.Context, rec conversation.Record, summary conversation.StructuredSummary) ([]byte, error) {
	if len(rec.Transcript) == 0 || summary.Summary == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Conversation Report", false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Conversation Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 5, fmt.Sprintf("Conversation %s | Account %s | Generated %s",
		rec.ConversationID, rec.AccountID, time.Now().UTC().Format("2006-01-02 15:04 UTC")), "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.SetTextColor(0, 0, 0)

	sectionTitle(pdf, "Call Details")
	keyValue(pdf, "Contact", rec.EmailID)
	keyValue(pdf, "Platform", rec.Metadata.Platform)
	keyValue(pdf, "Session", rec.Metadata.SessionID)
	keyValue(pdf, "Duration", fmt.Sprintf("%ds", rec.Metadata.DurationSeconds))
	keyValue(pdf, "Messages", fmt.Sprintf("%d", rec.Metadata.MessageCount))
	pdf.Ln(3)

	sectionTitle(pdf, "Analysis")
	keyValue(pdf, "Topic", summary.Topic)
	keyValue(pdf, "Sentiment", summary.Sentiment)
	keyValue(pdf, "Resolution", summary.Resolution)
	if summary.FollowUpRequired {
		keyValue(pdf, "Follow-up", "required")
	}
	pdf.Ln(1)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, summary.Summary, "", "L", false)
	pdf.Ln(3)

	bulletSection(pdf, "Key Factors", summary.KeyFactors)
	bulletSection(pdf, "Risk Factors", summary.RiskFactors)
	bulletSection(pdf, "Recommendations", summary.Recommendations)
	bulletSection(pdf, "Action Items", summary.ActionItems)
	if len(summary.Keywords) > 0 {
		sectionTitle(pdf, "Keywords")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, strings.Join(summary.Keywords, ", "), "", "L", false)
		pdf.Ln(3)
	}

	sectionTitle(pdf, "Transcript")
	for _, m := range rec.Transcript {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s  %s", m.Timestamp.Format("15:04:05"), m.Speaker), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 4.5, m.Content, "", "L", false)
		pdf.Ln(1.5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
}

func keyValue(pdf *fpdf.Fpdf, key, value string) {
	if value == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(35, 5, key, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, value, "", 1, "L", false, 0, "")
}

func bulletSection(pdf *fpdf.Fpdf, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sectionTitle(pdf, title)
	pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		pdf.MultiCell(0, 5, "- "+it, "", "L", false)
	}
	pdf.Ln(3)
}
