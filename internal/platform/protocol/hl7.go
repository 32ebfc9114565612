package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HL7-style ORU grammar: MSH, PID, OBR, then one OBX per result.
//
//	MSH|^~\&|SYSMEX XN-1000|LAB|LIS|HOSP|20240501103000||ORU^R01|MSG0001|P|2.5.1
//	PID|1||PAT-42||Doe^Jane
//	OBR|1||ACC-9^LAB|CBC|||20240501102500
//	OBX|1|NM|WBC||6.2|10*9/L|4.0-10.0|N
func parseHL7(raw []byte) (*ParsedRecord, []RecordError, error) {
	lines := splitLines(raw)
	if len(lines) == 0 {
		return nil, nil, ErrEmptyMessage
	}

	if !strings.HasPrefix(lines[0], "MSH|") {
		return nil, nil, fmt.Errorf("%w: first segment must be MSH", ErrHeaderUnparsable)
	}

	rec := &ParsedRecord{Protocol: HintHL7}
	if err := parseMSH(lines[0], rec); err != nil {
		return nil, nil, err
	}

	var recErrs []RecordError
	seq := 0
	controlRun := false
	controlLot := ""

	for _, line := range lines[1:] {
		name, fields := splitSegment(line)
		switch name {
		case "PID":
			// Patient identity is resolved downstream by accession number.
		case "OBR":
			controlRun, controlLot = parseOBR(fields, rec)
		case "OBX":
			seq++
			f, err := parseOBX(fields, seq)
			if err != nil {
				recErrs = append(recErrs, RecordError{Sequence: seq, Line: line, Reason: err.Error()})
				continue
			}
			if controlRun && !f.Control {
				f.Control = true
				f.ControlLot = controlLot
			}
			rec.Fields = append(rec.Fields, f)
		case "NTE", "ORC", "SPM":
			// Notes, order control and specimen segments carry nothing the
			// result pipeline consumes directly.
		default:
			recErrs = append(recErrs, RecordError{Sequence: seq, Line: line, Reason: fmt.Sprintf("unknown segment %q", name)})
		}
	}

	rec.Fields = dedupeLastWins(rec.Fields)
	return rec, recErrs, nil
}

// splitSegment splits an HL7 segment into its name and 1-based fields, so
// fields[1] is the segment's first data field.
func splitSegment(line string) (string, []string) {
	parts := strings.Split(line, "|")
	return strings.ToUpper(parts[0]), parts
}

// parseMSH extracts the sending application (MSH-3, the identification
// token) and the message timestamp (MSH-7). MSH-1 is the | separator itself,
// so data fields are shifted by one relative to other segments.
func parseMSH(line string, rec *ParsedRecord) error {
	parts := strings.Split(line, "|")
	// parts[0]="MSH", parts[1]=encoding chars (MSH-2), parts[2]=MSH-3, ...
	if len(parts) < 3 || strings.TrimSpace(parts[2]) == "" {
		return fmt.Errorf("%w: MSH has no sending application", ErrHeaderUnparsable)
	}
	rec.SenderToken = strings.TrimSpace(parts[2])

	if len(parts) > 6 {
		if ts, err := parseHL7Timestamp(parts[6]); err == nil {
			rec.Timestamp = ts
		}
	}
	return nil
}

// parseOBR pulls the accession number (OBR-3 filler order number, falling
// back to OBR-2), the ordered panel (OBR-4) and the specimen source
// (OBR-15). A specimen action code of Q (OBR-11) marks the run as QC, with
// the control lot in OBR-13.
func parseOBR(fields []string, rec *ParsedRecord) (control bool, lot string) {
	accession := ""
	if len(fields) > 3 {
		accession = firstComponent(fields[3])
	}
	if accession == "" && len(fields) > 2 {
		accession = firstComponent(fields[2])
	}
	rec.AccessionNumber = accession

	if len(fields) > 4 {
		rec.Panel = firstComponent(fields[4])
	}
	if len(fields) > 15 {
		rec.SpecimenType = strings.ToUpper(firstComponent(fields[15]))
	}

	if len(fields) > 11 && strings.EqualFold(strings.TrimSpace(fields[11]), "Q") {
		control = true
		if len(fields) > 13 {
			lot = firstComponent(fields[13])
		}
	}
	return control, lot
}

// parseOBX parses one OBX segment into a ResultField: OBX-3 observation
// identifier, OBX-5 value, OBX-6 unit, OBX-7 reference range, OBX-8 abnormal
// flag.
func parseOBX(fields []string, seq int) (ResultField, error) {
	if len(fields) < 6 {
		return ResultField{}, fmt.Errorf("OBX has %d fields, want at least 6", len(fields))
	}

	code := componentCode(fields[3])
	if code == "" {
		return ResultField{}, fmt.Errorf("OBX has no observation identifier in %q", fields[3])
	}

	f := ResultField{
		Code:     code,
		Value:    strings.TrimSpace(firstComponent(fields[5])),
		Sequence: seq,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(fields[1])); err == nil && n > 0 {
		f.Sequence = n
	}
	if len(fields) > 6 {
		f.Unit = firstComponent(fields[6])
	}
	if len(fields) > 7 {
		f.RefLow, f.RefHigh = splitRange(fields[7])
	}
	if len(fields) > 8 {
		f.AbnormalFlag = strings.TrimSpace(fields[8])
	}
	return f, nil
}

func firstComponent(field string) string {
	comps := strings.Split(field, "^")
	return strings.TrimSpace(comps[0])
}

// parseHL7Timestamp parses an HL7 timestamp (YYYYMMDDHHmmss, YYYYMMDDHHmm or
// YYYYMMDD).
func parseHL7Timestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) >= 12:
		return time.Parse("200601021504", s[:12])
	case len(s) >= 8:
		return time.Parse("20060102", s[:8])
	default:
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
}
