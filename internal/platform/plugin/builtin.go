package plugin

import (
	"strings"

	"github.com/labgate/labgate/internal/platform/protocol"
)

// Builtin returns the descriptors for the instrument integrations shipped
// with the server. New vendors are added here; the registry rejects
// ambiguous patterns at startup.
func Builtin() []Descriptor {
	return []Descriptor{
		mindrayBA88A(),
		sysmexXN(),
		urit8021(),
	}
}

// mindrayBA88A covers the Mindray BA-88A semi-auto chemistry analyzer, which
// speaks the ASTM-style segment protocol and reports decimal commas on
// firmware localized for European laboratories.
func mindrayBA88A() Descriptor {
	return Descriptor{
		Name:     "mindray-ba88a",
		Match:    MatchPrefix,
		Pattern:  "Mindray^BA-88A",
		Protocol: protocol.HintASTM,
		FieldCodes: map[string]string{
			"TBIL": "T-Bil",
			"DBIL": "D-Bil",
			"CRE":  "CREA",
		},
		DefaultUnits: map[string]string{
			"ALT": "U/L",
			"AST": "U/L",
			"ALP": "U/L",
		},
		NormalizeValue: commaToDot,
		ControlLevel:   levelFromLotSuffix,
	}
}

// sysmexXN covers the Sysmex XN hematology series, which reports over the
// HL7-style ORU grammar with the model name as sending application.
func sysmexXN() Descriptor {
	return Descriptor{
		Name:     "sysmex-xn",
		Match:    MatchPrefix,
		Pattern:  "SYSMEX XN",
		Protocol: protocol.HintHL7,
		DefaultUnits: map[string]string{
			"WBC": "10*9/L",
			"RBC": "10*12/L",
			"HGB": "g/dL",
			"PLT": "10*9/L",
		},
		ControlLevel: levelFromLotSuffix,
	}
}

// urit8021 covers the URIT-8021 export files, identified by the product
// banner on the first line.
func urit8021() Descriptor {
	return Descriptor{
		Name:         "urit-8021",
		Match:        MatchRegex,
		Pattern:      `^URIT-8021\b`,
		Protocol:     protocol.HintFlatFile,
		ControlLevel: levelFromLotSuffix,
	}
}

// commaToDot normalizes decimal commas in numeric values. Non-numeric values
// pass through untouched.
func commaToDot(_ string, value string) string {
	if strings.Count(value, ",") != 1 {
		return value
	}
	candidate := strings.Replace(value, ",", ".", 1)
	for _, r := range candidate {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			return value
		}
	}
	return candidate
}

// levelFromLotSuffix reads the control level from conventional lot naming:
// a -L/-N/-H (or -L1/-L2/-L3) suffix segment.
func levelFromLotSuffix(lot string) string {
	upper := strings.ToUpper(lot)
	switch {
	case strings.HasSuffix(upper, "-L") || strings.HasSuffix(upper, "-L1") || strings.Contains(upper, "-LOW"):
		return "LOW"
	case strings.HasSuffix(upper, "-H") || strings.HasSuffix(upper, "-L3") || strings.Contains(upper, "-HIGH"):
		return "HIGH"
	case strings.HasSuffix(upper, "-N") || strings.HasSuffix(upper, "-L2") || strings.Contains(upper, "-NORM"):
		return "NORMAL"
	default:
		return ""
	}
}
