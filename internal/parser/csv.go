package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// csvBatchRows is how many data rows go into one tabular node.
const csvBatchRows = 20

// CSVParser handles CSV files. The file becomes one Sheet with the data
// rows grouped into tabular nodes that share the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &Document{Title: baseTitle(filename), Format: "csv", Source: filename}
	if len(records) == 0 {
		return doc, nil
	}

	a := NewAssembler(filename, "csv")
	a.Open(doctree.KindSheet, doc.Title, 0)

	headers := records[0]
	dataRows := records[1:]
	for i := 0; i < len(dataRows); i += csvBatchRows {
		end := min(i+csvBatchRows, len(dataRows))
		if err := a.Add(Event{Kind: EventTable, Headers: headers, Rows: dataRows[i:end]}); err != nil {
			return nil, err
		}
		nodes := a.Nodes()
		nodes[len(nodes)-1].Meta.Extra = map[string]string{
			// 1-indexed file lines, header is line 1
			"rows": fmt.Sprintf("%d-%d", i+2, end+1),
		}
	}

	doc.Nodes = a.Nodes()
	return doc, nil
}
