package protocol

import (
	"fmt"
	"strings"
	"time"
)

// Vendor flat-file grammar: a product banner line identifies the vendor,
// followed by a header block and repeated result blocks separated by blank
// lines. Fields are key: value pairs.
//
//	URIT-8021 Analysis Report
//	Sample No: SAMPLE-001
//	Specimen: SERUM
//	Date: 2024-05-01 10:30:00
//
//	Test: ALT
//	Result: 35.2
//	Unit: U/L
//	Range: 9-50
//	Flag: N
func parseFlatFile(raw []byte) (*ParsedRecord, []RecordError, error) {
	blocks := splitBlocks(string(raw))
	if len(blocks) == 0 {
		return nil, nil, ErrEmptyMessage
	}

	header := blocks[0]
	if len(header) == 0 || strings.Contains(header[0], ":") {
		return nil, nil, fmt.Errorf("%w: flat file has no banner line", ErrHeaderUnparsable)
	}
	// A banner with nothing after it is indistinguishable from arbitrary
	// text; a real export always carries at least one result block.
	if len(blocks) < 2 {
		return nil, nil, fmt.Errorf("%w: flat file has no result blocks", ErrHeaderUnparsable)
	}

	rec := &ParsedRecord{
		Protocol:    HintFlatFile,
		SenderToken: strings.TrimSpace(header[0]),
	}
	applyHeaderBlock(header[1:], rec)

	var recErrs []RecordError
	seq := 0
	for _, block := range blocks[1:] {
		seq++
		f, err := parseResultBlock(block, seq)
		if err != nil {
			recErrs = append(recErrs, RecordError{Sequence: seq, Line: strings.Join(block, "\n"), Reason: err.Error()})
			continue
		}
		rec.Fields = append(rec.Fields, f)
	}

	rec.Fields = dedupeLastWins(rec.Fields)
	return rec, recErrs, nil
}

// splitBlocks splits the file into blocks of non-empty lines separated by one
// or more blank lines.
func splitBlocks(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var blocks [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func applyHeaderBlock(lines []string, rec *ParsedRecord) {
	for _, line := range lines {
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		switch key {
		case "sample no", "sample", "accession":
			rec.AccessionNumber = value
		case "specimen", "specimen type":
			rec.SpecimenType = strings.ToUpper(value)
		case "panel":
			rec.Panel = value
		case "date", "time", "datetime":
			if ts, err := parseFlatFileTimestamp(value); err == nil {
				rec.Timestamp = ts
			}
		}
	}
}

func parseResultBlock(lines []string, seq int) (ResultField, error) {
	f := ResultField{Sequence: seq}
	for _, line := range lines {
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		switch key {
		case "test", "item", "parameter":
			f.Code = value
		case "result", "value":
			f.Value = value
		case "unit":
			f.Unit = value
		case "range", "reference":
			f.RefLow, f.RefHigh = splitRange(value)
		case "flag":
			f.AbnormalFlag = value
		case "control lot", "lot":
			f.Control = true
			f.ControlLot = value
		}
	}
	if f.Code == "" {
		return ResultField{}, fmt.Errorf("result block has no test name")
	}
	if f.Value == "" {
		return ResultField{}, fmt.Errorf("result block for %q has no value", f.Code)
	}
	return f, nil
}

func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(line[:idx])), strings.TrimSpace(line[idx+1:]), true
}

func parseFlatFileTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02", "02/01/2006 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
