// Package csvexport renders a guarded execution result into the CSV
// artifact the Reporting phase's "format results" tool returns: base64-
// encoded CSV bytes over the first 1000 rows, a small preview, and a
// truncation flag, per spec.md §9's CSV encoding design note.
package csvexport

import (
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/semlayer/agent-engine/pkg/models"
)

const (
	maxEncodedRows = 1000
	previewRows    = 30
)

// Artifact is the CSV rendering of an ExecutionResult handed back to the
// Reporting phase's "format results" tool.
type Artifact struct {
	Base64        string     `json:"base64"`
	Preview       [][]string `json:"preview"`
	RowCount      int        `json:"rowCount"`
	EncodedRows   int        `json:"encodedRows"`
	Truncated     bool       `json:"truncated"`
}

// Build encodes up to the first 1000 rows of result as CSV, base64 over
// UTF-8 bytes, plus a 30-row preview. Truncated is true when result's rows
// exceeded the 1000-row encoding cap or when result was already marked
// truncated upstream by the Execution Guard.
func Build(result *models.ExecutionResult) (*Artifact, error) {
	header := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		header[i] = c.Name
	}

	rows := result.Rows
	truncated := result.Truncated
	if len(rows) > maxEncodedRows {
		rows = rows[:maxEncodedRows]
		truncated = true
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := make([]string, len(header))
		for i, name := range header {
			record[i] = formatCell(row[name])
		}
		records = append(records, record)
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv writer: %w", err)
	}

	preview := records
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}

	return &Artifact{
		Base64:      base64.StdEncoding.EncodeToString([]byte(buf.String())),
		Preview:     preview,
		RowCount:    len(result.Rows),
		EncodedRows: len(records),
		Truncated:   truncated,
	}, nil
}

func formatCell(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
