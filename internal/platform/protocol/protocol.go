// Package protocol turns raw analyzer message bytes into an ordered sequence
// of result fields. Three grammars are supported: ASTM-style segment-delimited
// instrument messages, HL7-style ORU messages, and vendor flat-file exports.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Hint selects a wire grammar. HintAuto detects the grammar from content.
type Hint string

const (
	HintAuto     Hint = "auto"
	HintASTM     Hint = "astm"
	HintHL7      Hint = "hl7"
	HintFlatFile Hint = "flatfile"
)

// RawMessage is one analyzer message as delivered by the transport layer.
type RawMessage struct {
	Body       []byte
	Source     string
	ReceivedAt time.Time
	Hint       Hint
}

// ResultField is a single result extracted from a message. Numeric values are
// kept as decimal strings so significant digits survive untouched.
type ResultField struct {
	Code         string
	Value        string
	Unit         string
	RefLow       string
	RefHigh      string
	AbnormalFlag string
	Control      bool
	ControlLot   string
	Sequence     int
}

// ParsedRecord is the outcome of parsing one message.
type ParsedRecord struct {
	SenderToken     string
	Protocol        Hint
	Timestamp       time.Time
	AccessionNumber string
	SpecimenType    string
	Panel           string
	Fields          []ResultField
}

// RecordError describes a single malformed record inside an otherwise
// parsable message. The rest of the message is still returned.
type RecordError struct {
	Sequence int
	Line     string
	Reason   string
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Sequence, e.Reason)
}

var (
	// ErrHeaderUnparsable means the message header could not be parsed, which
	// is fatal for the whole message.
	ErrHeaderUnparsable = errors.New("protocol: message header unparsable")
	// ErrEmptyMessage means the message body carried no content.
	ErrEmptyMessage = errors.New("protocol: message is empty")
)

// Parse parses raw message bytes according to hint. It returns the parsed
// record plus any per-record errors; only an unparsable header yields a
// non-nil error, in which case nothing else is returned.
func Parse(raw []byte, hint Hint) (*ParsedRecord, []RecordError, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, ErrEmptyMessage
	}

	if hint == "" || hint == HintAuto {
		hint = Detect(raw)
	}

	switch hint {
	case HintASTM:
		return parseASTM(raw)
	case HintHL7:
		return parseHL7(raw)
	case HintFlatFile:
		return parseFlatFile(raw)
	default:
		return nil, nil, fmt.Errorf("protocol: unknown hint %q", hint)
	}
}

// Detect inspects the first bytes of a message and picks a grammar. Messages
// that are neither ASTM nor HL7 fall through to the flat-file reader, whose
// banner matching makes the final call.
func Detect(raw []byte) Hint {
	trimmed := bytes.TrimLeft(raw, " \t\r\n\x0b")
	switch {
	case bytes.HasPrefix(trimmed, []byte("MSH|")):
		return HintHL7
	case bytes.HasPrefix(trimmed, []byte("H|")):
		return HintASTM
	default:
		return HintFlatFile
	}
}

// dedupeLastWins collapses duplicate result lines for the same test code,
// keeping the last value at the first occurrence's position. Instruments
// re-transmit corrected results as additional lines for the same code.
func dedupeLastWins(fields []ResultField) []ResultField {
	type key struct {
		code    string
		control bool
		lot     string
	}
	seen := make(map[key]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		k := key{f.Code, f.Control, f.ControlLot}
		if idx, ok := seen[k]; ok {
			seq := out[idx].Sequence
			out[idx] = f
			out[idx].Sequence = seq
			continue
		}
		seen[k] = len(out)
		out = append(out, f)
	}
	return out
}

// splitLines splits a message body into trimmed, non-empty lines, accepting
// \r, \n, and \r\n terminators.
func splitLines(raw []byte) []string {
	text := string(raw)
	var lines []string
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\r' || text[i] == '\n' {
			line := text[start:i]
			if trimmed := trimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
			start = i + 1
		}
	}
	return lines
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}
