package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ASTM-style segment grammar: Header, Patient, Order, Result* and a
// Terminator, one record per line, fields separated by | and components by ^.
//
//	H|\^&|||Mindray^BA-88A^1.0|...
//	P|1|...
//	O|1|SAMPLE-001^SERUM|...
//	R|1|^^^ALT|35.2|U/L|9-50|N|...
//	L|1|N
type astmState int

const (
	astmExpectHeader astmState = iota
	astmInMessage
	astmTerminated
)

const qcSpecimenPrefix = "QC"

func parseASTM(raw []byte) (*ParsedRecord, []RecordError, error) {
	lines := splitLines(raw)
	if len(lines) == 0 {
		return nil, nil, ErrEmptyMessage
	}

	rec := &ParsedRecord{Protocol: HintASTM}
	var recErrs []RecordError

	state := astmExpectHeader
	seq := 0
	controlOrder := false
	controlLot := ""

	for _, line := range lines {
		if state == astmTerminated {
			break
		}

		fields := strings.Split(line, "|")
		recordType := strings.ToUpper(fields[0])

		if state == astmExpectHeader {
			if recordType != "H" {
				return nil, nil, fmt.Errorf("%w: first record is %q, want H", ErrHeaderUnparsable, recordType)
			}
			if err := parseASTMHeader(fields, rec); err != nil {
				return nil, nil, err
			}
			state = astmInMessage
			continue
		}

		switch recordType {
		case "P":
			// Patient demographics are owned by the order workflow; nothing
			// the ingestion pipeline needs beyond record sequencing.
		case "O":
			controlOrder, controlLot = parseASTMOrder(fields, rec)
		case "R":
			seq++
			f, err := parseASTMResult(fields, seq)
			if err != nil {
				recErrs = append(recErrs, RecordError{Sequence: seq, Line: line, Reason: err.Error()})
				continue
			}
			if controlOrder && !f.Control {
				f.Control = true
				f.ControlLot = controlLot
			}
			rec.Fields = append(rec.Fields, f)
		case "C", "Q", "M":
			// Comment, query and manufacturer records carry no results.
		case "L":
			state = astmTerminated
		default:
			recErrs = append(recErrs, RecordError{Sequence: seq, Line: line, Reason: fmt.Sprintf("unknown record type %q", recordType)})
		}
	}

	rec.Fields = dedupeLastWins(rec.Fields)
	return rec, recErrs, nil
}

// parseASTMHeader extracts the identification token (field 5,
// manufacturer^model^version) and the optional trailing message timestamp.
func parseASTMHeader(fields []string, rec *ParsedRecord) error {
	if len(fields) < 5 {
		return fmt.Errorf("%w: header has %d fields, want at least 5", ErrHeaderUnparsable, len(fields))
	}
	token := strings.TrimSpace(fields[4])
	if token == "" {
		return fmt.Errorf("%w: header sender field is empty", ErrHeaderUnparsable)
	}
	rec.SenderToken = token

	if len(fields) >= 14 {
		if ts, err := parseASTMTimestamp(fields[13]); err == nil {
			rec.Timestamp = ts
		}
	}
	return nil
}

// parseASTMOrder pulls the accession number, specimen type and panel from an
// O record and reports whether the order targets control material. A specimen
// id of QC^<lot> marks everything under the order as a QC run.
func parseASTMOrder(fields []string, rec *ParsedRecord) (control bool, lot string) {
	if len(fields) < 3 {
		return false, ""
	}
	specimen := strings.Split(fields[2], "^")
	id := strings.TrimSpace(specimen[0])

	if strings.HasPrefix(strings.ToUpper(id), qcSpecimenPrefix) {
		control = true
		if len(specimen) > 1 && specimen[1] != "" {
			lot = specimen[1]
		} else {
			lot = id
		}
	} else {
		rec.AccessionNumber = id
		if len(specimen) > 1 {
			rec.SpecimenType = strings.ToUpper(strings.TrimSpace(specimen[1]))
		}
	}

	// Universal test id (field 5) carries the ordered panel as ^^^PANEL.
	if len(fields) >= 5 {
		if comps := strings.Split(fields[4], "^"); len(comps) >= 4 {
			rec.Panel = strings.TrimSpace(comps[3])
		}
	}
	return control, lot
}

// parseASTMResult parses one R record. Field 3 is the test id in ^^^CODE
// form, field 4 the value, field 5 the unit, field 6 an optional low-high
// reference range and field 7 the abnormal flags.
func parseASTMResult(fields []string, seq int) (ResultField, error) {
	if len(fields) < 4 {
		return ResultField{}, fmt.Errorf("result record has %d fields, want at least 4", len(fields))
	}

	code := componentCode(fields[2])
	if code == "" {
		return ResultField{}, fmt.Errorf("result record has no test code in %q", fields[2])
	}

	f := ResultField{
		Code:     code,
		Value:    strings.TrimSpace(fields[3]),
		Sequence: seq,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(fields[1])); err == nil && n > 0 {
		f.Sequence = n
	}
	if len(fields) >= 5 {
		f.Unit = strings.TrimSpace(fields[4])
	}
	if len(fields) >= 6 {
		f.RefLow, f.RefHigh = splitRange(fields[5])
	}
	if len(fields) >= 7 {
		f.AbnormalFlag = strings.TrimSpace(fields[6])
	}
	return f, nil
}

// componentCode returns the last non-empty component of a ^^^CODE test id.
func componentCode(field string) string {
	comps := strings.Split(field, "^")
	for i := len(comps) - 1; i >= 0; i-- {
		if c := strings.TrimSpace(comps[i]); c != "" {
			return c
		}
	}
	return ""
}

// splitRange splits a low-high reference range. Values without a separator
// are returned as the low bound only.
func splitRange(field string) (low, high string) {
	field = strings.TrimSpace(field)
	if field == "" {
		return "", ""
	}
	parts := strings.SplitN(field, "-", 2)
	low = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		high = strings.TrimSpace(parts[1])
	}
	return low, high
}

// parseASTMTimestamp parses the YYYYMMDDHHMMSS header timestamp.
func parseASTMTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) >= 8:
		return time.Parse("20060102", s[:8])
	default:
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
}
