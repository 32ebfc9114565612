package protocol

import (
	"errors"
	"testing"
)

const uritFixture = `URIT-8021 Analysis Report
Sample No: SAMPLE-001
Specimen: serum
Date: 2024-05-01 10:30:00

Test: ALT
Result: 35.2
Unit: U/L
Range: 9-50
Flag: N

Test: AST
Result: 28.4
Unit: U/L
Range: 8-40
Flag: N
`

func TestParseFlatFile_Fixture(t *testing.T) {
	rec, recErrs, err := Parse([]byte(uritFixture), HintAuto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recErrs) != 0 {
		t.Fatalf("unexpected record errors: %v", recErrs)
	}

	if rec.SenderToken != "URIT-8021 Analysis Report" {
		t.Errorf("sender token = %q", rec.SenderToken)
	}
	if rec.Protocol != HintFlatFile {
		t.Errorf("protocol = %q", rec.Protocol)
	}
	if rec.AccessionNumber != "SAMPLE-001" {
		t.Errorf("accession = %q", rec.AccessionNumber)
	}
	if rec.SpecimenType != "SERUM" {
		t.Errorf("specimen type = %q", rec.SpecimenType)
	}
	if rec.Timestamp.IsZero() {
		t.Error("expected header date to be parsed")
	}

	if len(rec.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(rec.Fields))
	}
	alt := rec.Fields[0]
	if alt.Code != "ALT" || alt.Value != "35.2" || alt.Unit != "U/L" {
		t.Errorf("ALT = %+v", alt)
	}
	if alt.RefLow != "9" || alt.RefHigh != "50" {
		t.Errorf("ALT range = %q-%q", alt.RefLow, alt.RefHigh)
	}
}

func TestParseFlatFile_ControlBlock(t *testing.T) {
	msg := `URIT-8021 Analysis Report
Sample No: QC-RUN

Test: GLU
Result: 5.4
Unit: mmol/L
Control Lot: U8021-N-042
`
	rec, _, err := Parse([]byte(msg), HintFlatFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(rec.Fields))
	}
	if !rec.Fields[0].Control || rec.Fields[0].ControlLot != "U8021-N-042" {
		t.Errorf("control field = %+v", rec.Fields[0])
	}
}

func TestParseFlatFile_MalformedBlockIsRecordLevel(t *testing.T) {
	msg := `URIT-8021 Analysis Report
Sample No: SAMPLE-002

Test: ALT
Result: 35.2

Test: AST

Test: ALP
Result: 104
`
	rec, recErrs, err := Parse([]byte(msg), HintFlatFile)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(rec.Fields) != 2 {
		t.Errorf("expected 2 parsed fields, got %d", len(rec.Fields))
	}
	if len(recErrs) != 1 {
		t.Errorf("expected 1 record error, got %d", len(recErrs))
	}
}

func TestParseFlatFile_MissingBannerIsFatal(t *testing.T) {
	msg := "Sample No: SAMPLE-003\n\nTest: ALT\nResult: 35.2\n"
	if _, _, err := Parse([]byte(msg), HintFlatFile); err == nil {
		t.Fatal("expected fatal error for missing banner")
	}
}

func TestParseFlatFile_NoResultBlocksIsFatal(t *testing.T) {
	for _, msg := range []string{
		"garbage that is no banner\nand no message",
		"URIT-8021 Analysis Report\nSample No: SAMPLE-004\n",
	} {
		_, _, err := Parse([]byte(msg), HintFlatFile)
		if !errors.Is(err, ErrHeaderUnparsable) {
			t.Errorf("Parse(%q): err = %v, want ErrHeaderUnparsable", msg, err)
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		raw  string
		want Hint
	}{
		{"H|\\^&|||Mindray^BA-88A^1.0\r", HintASTM},
		{"MSH|^~\\&|SYSMEX XN-1000\r", HintHL7},
		{"URIT-8021 Analysis Report\n", HintFlatFile},
	}
	for _, tt := range tests {
		if got := Detect([]byte(tt.raw)); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParse_EmptyMessage(t *testing.T) {
	if _, _, err := Parse([]byte("  \r\n "), HintAuto); err == nil {
		t.Fatal("expected error for empty message")
	}
}
