package ingest

import (
	"github.com/labgate/labgate/internal/platform/protocol"
)

// Routed is a message's fields split by destination path. A message may hold
// both kinds at once; both paths then execute inside one transaction.
type Routed struct {
	Patient []protocol.ResultField
	QC      []protocol.ResultField
}

// IsControl reports whether a field belongs to the QC path. The control
// indicator or a non-empty control lot id is decisive regardless of whether
// the field's code maps.
func IsControl(f protocol.ResultField) bool {
	return f.Control || f.ControlLot != ""
}

// Route classifies fields into the patient and QC paths, preserving the
// original sequence order within each path.
func Route(fields []protocol.ResultField) Routed {
	var r Routed
	for _, f := range fields {
		if IsControl(f) {
			r.QC = append(r.QC, f)
			continue
		}
		r.Patient = append(r.Patient, f)
	}
	return r
}
