package blocks

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// CSVParse turns CSV text into rows. With a header (the default), each row
// becomes an object keyed by column name; without one, each row is an array
// of strings.
type CSVParse struct {
	Base
}

func (c *CSVParse) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	text, ok := input.(string)
	if !ok {
		if fromConfig, present := config["text"].(string); present {
			text = fromConfig
		} else {
			return domain.FailedResult("csv.parse expects string input or a text config value")
		}
	}

	reader := csv.NewReader(strings.NewReader(text))
	delimiter := stringOption(config, "delimiter", ",")
	if len(delimiter) != 1 {
		return domain.FailedResult("delimiter must be a single character")
	}
	reader.Comma = rune(delimiter[0])
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return domain.FailedResult("csv parse failed: " + err.Error())
	}

	hasHeader := boolOption(config, "has_header", true)
	rows := make([]interface{}, 0, len(records))

	if hasHeader {
		if len(records) == 0 {
			return domain.FailedResult("csv input has no header row")
		}
		header := records[0]
		for i, record := range records[1:] {
			if len(record) != len(header) {
				return domain.FailedResult(fmt.Sprintf("row %d has %d fields, header has %d", i+1, len(record), len(header)))
			}
			row := make(map[string]interface{}, len(header))
			for j, column := range header {
				row[column] = record[j]
			}
			rows = append(rows, row)
		}
	} else {
		for _, record := range records {
			row := make([]interface{}, len(record))
			for j, field := range record {
				row[j] = field
			}
			rows = append(rows, row)
		}
	}

	return domain.CompletedResult(map[string]interface{}{
		"rows":  rows,
		"count": len(rows),
	})
}
