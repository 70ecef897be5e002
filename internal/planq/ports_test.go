package planq

import "testing"

func TestRecorderCountsRisingEdgesOnly(t *testing.T) {
	r := NewRecorder()
	r.DriveStepDir(0x01) // X rises
	r.DriveStepDir(0x01) // X held high, no new edge
	r.DriveStepDir(0x00) // X falls
	r.DriveStepDir(0x01) // X rises again

	if r.StepEdges[AxisX] != 2 {
		t.Fatalf("StepEdges[X] = %d, want 2", r.StepEdges[AxisX])
	}
	if r.StepEdges[AxisY] != 0 || r.StepEdges[AxisZ] != 0 {
		t.Fatalf("unexpected edges on Y/Z: %v", r.StepEdges)
	}
}

func TestRecorderClearStepsPreservesDirectionBits(t *testing.T) {
	r := NewRecorder()
	r.DriveStepDir(0x37) // steps 0-2 set, direction nibble 0x30 set
	r.ClearSteps()
	if r.OutBits != 0x30 {
		t.Fatalf("OutBits after ClearSteps() = %#x, want 0x30 (direction bits preserved)", r.OutBits)
	}
}

func TestRecorderEnable(t *testing.T) {
	r := NewRecorder()
	if r.Enabled {
		t.Fatalf("new recorder should start disabled")
	}
	r.Enable(true)
	if !r.Enabled {
		t.Fatalf("Enable(true) did not set Enabled")
	}
}
