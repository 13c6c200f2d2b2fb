package ingest

import (
	"bufio"
	"context"
	"strings"

	"github.com/logmill/logmill/internal/errors"
	"github.com/logmill/logmill/internal/logging"
	"github.com/logmill/logmill/pkg/types"
)

// maxRowBytes bounds a single row; rows beyond this are malformed input.
const maxRowBytes = 1 << 20

// Appender accepts parsed records in ingestion order.
type Appender interface {
	Append(rec types.LogRecord)
}

// Options control ingestion behavior.
type Options struct {
	// HasHeader marks the first row as a header to skip, not parse.
	HasHeader bool

	// Strict aborts on the first malformed row instead of tallying it.
	Strict bool
}

// Ingestor reads rows from a Source, parses them, and appends records
// to an Appender. Rejected rows are tallied in ParseStats, never lost.
type Ingestor struct {
	parser *Parser
	opts   Options
}

// NewIngestor creates an ingestor with the given parser and options.
func NewIngestor(parser *Parser, opts Options) *Ingestor {
	return &Ingestor{parser: parser, opts: opts}
}

// Ingest runs the full ingestion pass. It is not transactional: records
// appended before a failure stay appended, and the operation is restarted
// by re-ingesting into a fresh store.
func (in *Ingestor) Ingest(ctx context.Context, src Source, dst Appender) (types.ParseStats, error) {
	log := logging.Component("ingest")

	var stats types.ParseStats

	r, err := src.Open()
	if err != nil {
		return stats, err
	}
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRowBytes)

	first := true
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, errors.NewLoadError(errors.CodeSourceUnavailable,
				"ingestion cancelled", err)
		}

		row := strings.TrimSuffix(scanner.Text(), "\r")
		if first {
			first = false
			if in.opts.HasHeader {
				continue
			}
		}

		stats.RowsRead++

		rec, err := in.parser.ParseRow(row)
		if err != nil {
			if in.opts.Strict {
				return stats, errors.NewLoadError(errors.CodeStrictParse,
					"malformed row in strict mode", err)
			}
			switch errors.GetCode(err) {
			case errors.CodeInvalidStatus:
				stats.InvalidStatus++
			default:
				stats.Malformed++
			}
			continue
		}

		if !rec.HasTime {
			stats.BadTimestamp++
		}
		if !rec.ValidIP {
			stats.BadIP++
		}

		stats.Parsed++
		dst.Append(rec)
	}

	if err := scanner.Err(); err != nil {
		return stats, errors.NewLoadError(errors.CodeSourceUnavailable,
			"failed reading "+src.Name(), err)
	}

	log.Info("ingestion complete",
		"source", src.Name(),
		"rows_read", stats.RowsRead,
		"parsed", stats.Parsed,
		"rejected", stats.Rejected())

	return stats, nil
}
