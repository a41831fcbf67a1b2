// internal/printing/receipt.go
package printing

import (
	"time"

	"terminal-service/internal/model"
)

// ReceiptContent is the caller-facing description of a receipt. The service
// renders it to ESC/POS so clients never deal with printer bytes.
type ReceiptContent struct {
	Header    string        `json:"header,omitempty"`
	Lines     []string      `json:"lines,omitempty"`
	Items     []ReceiptItem `json:"items,omitempty"`
	Total     string        `json:"total,omitempty"`
	Footer    string        `json:"footer,omitempty"`
	Timestamp *time.Time    `json:"timestamp,omitempty"`
}

// ReceiptItem is one label/value row, typically a product and its price
type ReceiptItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// RenderReceipt turns receipt content into an ESC/POS payload for the given
// paper profile
func RenderReceipt(content ReceiptContent, profile model.PaperProfile) []byte {
	doc := NewDocument(profile)

	if content.Header != "" {
		doc.Title(content.Header)
		doc.Divider()
	}
	for _, line := range content.Lines {
		doc.Line(line)
	}
	if len(content.Items) > 0 {
		for _, item := range content.Items {
			doc.Pair(item.Label, item.Value)
		}
		doc.Divider()
	}
	if content.Total != "" {
		doc.Pair("TOTAL", content.Total)
	}
	if content.Timestamp != nil {
		doc.Line(content.Timestamp.Format("2006-01-02 15:04:05"))
	}
	if content.Footer != "" {
		doc.Feed(1)
		doc.Centered(content.Footer)
	}
	doc.Cut()
	return doc.Bytes()
}
