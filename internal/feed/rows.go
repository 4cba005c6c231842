package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"cityevents/internal/model"
)

// maxParseErrors bounds how many malformed records are skipped before the
// rest of the body is given up on.
const maxParseErrors = 100

// Row is a raw row with the 1-based line number it started on.
type Row struct {
	Line   int
	Fields model.RawRow
}

// ParseRows turns delimited text with a header row into raw rows.
//
// A bare quote inside an unquoted field ("12" vinyl") is kept as text.
// Other malformed records are skipped; the rows that could be recovered
// are returned together with an error wrapping model.ErrParseFailure
// describing what was skipped. An empty body yields no rows and no error.
func ParseRows(body []byte) ([]Row, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", model.ErrParseFailure, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows := make([]Row, 0)
	var parseErrs []error

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				parseErrs = append(parseErrs, err)
				break
			}
			if rec, ok := rereadBareQuote(body, pe); ok {
				if !isBlank(rec) {
					rows = append(rows, toRow(header, rec, pe.StartLine))
				}
				continue
			}
			parseErrs = append(parseErrs, err)
			if len(parseErrs) >= maxParseErrors {
				break
			}
			continue
		}
		if isBlank(rec) {
			continue
		}

		line, _ := r.FieldPos(0)
		rows = append(rows, toRow(header, rec, line))
	}

	if len(parseErrs) > 0 {
		return rows, fmt.Errorf("%w: %d malformed record(s), first: %v", model.ErrParseFailure, len(parseErrs), parseErrs[0])
	}
	return rows, nil
}

func toRow(header, rec []string, line int) Row {
	fields := make(model.RawRow, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if i < len(rec) {
			fields[name] = rec[i]
		} else {
			fields[name] = ""
		}
	}
	return Row{Line: line, Fields: fields}
}

// rereadBareQuote parses the single line a bare-quote error came from with
// lazy quoting. Records spanning several lines are not retried.
func rereadBareQuote(body []byte, pe *csv.ParseError) ([]string, bool) {
	if !errors.Is(pe.Err, csv.ErrBareQuote) || pe.StartLine != pe.Line || pe.StartLine < 1 {
		return nil, false
	}
	lines := bytes.Split(body, []byte("\n"))
	if pe.StartLine > len(lines) {
		return nil, false
	}
	lr := csv.NewReader(bytes.NewReader(bytes.TrimRight(lines[pe.StartLine-1], "\r")))
	lr.LazyQuotes = true
	lr.FieldsPerRecord = -1
	lr.TrimLeadingSpace = true
	rec, err := lr.Read()
	if err != nil {
		return nil, false
	}
	return rec, true
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
