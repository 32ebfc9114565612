package ingest

import (
	"testing"

	"github.com/labgate/labgate/internal/platform/protocol"
)

func TestRouteSplitsByControlIndicator(t *testing.T) {
	fields := []protocol.ResultField{
		{Code: "ALT", Value: "35.2", Sequence: 1},
		{Code: "ALT", Value: "34.0", Control: true, ControlLot: "QC-L1", Sequence: 2},
		{Code: "AST", Value: "28.4", Sequence: 3},
		{Code: "AST", Value: "0", ControlLot: "QC-L2", Sequence: 4}, // lot without indicator still routes to QC
	}

	r := Route(fields)

	if len(r.Patient) != 2 {
		t.Fatalf("patient fields = %d, want 2", len(r.Patient))
	}
	if len(r.QC) != 2 {
		t.Fatalf("qc fields = %d, want 2", len(r.QC))
	}
	for _, f := range r.Patient {
		if IsControl(f) {
			t.Errorf("control field %q on patient path", f.Code)
		}
	}
	if r.Patient[0].Sequence != 1 || r.Patient[1].Sequence != 3 {
		t.Error("patient sequence order not preserved")
	}
	if r.QC[0].Sequence != 2 || r.QC[1].Sequence != 4 {
		t.Error("qc sequence order not preserved")
	}
}

func TestRouteEmptyMessage(t *testing.T) {
	r := Route(nil)
	if len(r.Patient) != 0 || len(r.QC) != 0 {
		t.Error("empty input should route nothing")
	}
}
