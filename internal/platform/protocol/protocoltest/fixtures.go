// Package protocoltest carries shared wire fixtures for tests that feed
// complete instrument messages through the readers. Keeping the messages in
// one place stops the record framing from drifting between packages.
package protocoltest

// MindrayChemistry is a complete BA-88A chemistry panel upload in E1394-97
// framing: sender token in H-5, processing id in H-12, version in H-13 and
// the message timestamp in H-14; the O record carries the universal test id
// (ordered panel) in O-5.
const MindrayChemistry = "H|\\^&|||Mindray^BA-88A^1.0|||||||P|1394-97|20240501103000\r" +
	"P|1\r" +
	"O|1|SAMPLE-001^SERUM||^^^CHEM20\r" +
	"R|1|^^^ALT|35.2|U/L|9-50|N\r" +
	"R|2|^^^AST|28.4|U/L|8-40|N\r" +
	"R|3|^^^ALP|104|U/L|45-125|N\r" +
	"R|4|^^^T-Bil|0.8|mg/dL|0.3-1.2|N\r" +
	"R|5|^^^D-Bil|0.2|mg/dL|0.0-0.3|N\r" +
	"R|6|^^^TC|4.9|mmol/L|2.8-5.2|N\r" +
	"R|7|^^^TG|1.4|mmol/L|0.4-1.7|N\r" +
	"R|8|^^^HDL-C|1.3|mmol/L|1.0-1.6|N\r" +
	"R|9|^^^CREA|78|umol/L|59-104|N\r" +
	"R|10|^^^TP|71|g/L|60-80|N\r" +
	"L|1|N\r"

// MindrayQC is a BA-88A control run for lot QC-240501-L1. Values carry the
// firmware's decimal comma.
const MindrayQC = "H|\\^&|||Mindray^BA-88A^1.0|||||||P|1394-97|20240501110000\r" +
	"P|1\r" +
	"O|1|QC^QC-240501-L1||^^^CHEM20\r" +
	"R|1|^^^ALT|34,1|U/L\r" +
	"R|2|^^^AST|27,5|U/L\r" +
	"L|1|N\r"

// MindrayChemistryCodes lists the vendor codes of MindrayChemistry in
// message order.
var MindrayChemistryCodes = []string{"ALT", "AST", "ALP", "T-Bil", "D-Bil", "TC", "TG", "HDL-C", "CREA", "TP"}
