// Package ingest implements the record model and the ingestion path:
// raw access-log rows are parsed, validated, and appended to the store.
package ingest

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/logmill/logmill/internal/errors"
	"github.com/logmill/logmill/pkg/types"
)

// FieldCount is the exact number of fields in an access-log row:
// client_address, timestamp, path, status_code, user_agent.
const FieldCount = 5

// Parser converts raw rows into LogRecords.
type Parser struct {
	delimiter string
}

// NewParser creates a parser for the given single-character field delimiter.
func NewParser(delimiter string) *Parser {
	return &Parser{delimiter: delimiter}
}

// ParseRow parses one raw row into a LogRecord.
//
// Arity mismatch fails with MALFORMED_ROW and a non-integer status code
// fails with INVALID_STATUS; both reject the row. IP and timestamp
// validation is advisory only: failures are flagged on the record, not
// rejected, because a record invalid for one analysis (bad timestamp)
// is still valid for others (status counting).
func (p *Parser) ParseRow(raw string) (types.LogRecord, error) {
	fields := strings.Split(raw, p.delimiter)
	if len(fields) != FieldCount {
		return types.LogRecord{}, errors.NewParseError(errors.CodeMalformedRow,
			fmt.Sprintf("expected %d fields, got %d", FieldCount, len(fields)))
	}

	status, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return types.LogRecord{}, errors.NewParseError(errors.CodeInvalidStatus,
			fmt.Sprintf("status code %q is not an integer", fields[3]))
	}

	rec := types.LogRecord{
		ClientAddress: fields[0],
		Timestamp:     fields[1],
		Path:          fields[2],
		StatusCode:    status,
		UserAgent:     fields[4],
	}

	rec.ValidIP = net.ParseIP(rec.ClientAddress) != nil

	if t, err := time.Parse(types.TimestampLayout, rec.Timestamp); err == nil {
		rec.Time = t
		rec.HasTime = true
	}

	return rec, nil
}
