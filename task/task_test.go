package task

import "testing"

func TestClearSubmissionResponses(t *testing.T) {
	tsk := New(TypeMeasure)
	tsk.Tasks = []SubTask{NewSubTask("qcmd1")}
	tsk.MD["submission_response"] = "stale"
	tsk.Tasks[0].MD["submission_response"] = "stale"

	tsk.ClearSubmissionResponses()

	if tsk.MD["submission_response"] != "" {
		t.Fatalf("task md not cleared: %q", tsk.MD["submission_response"])
	}
	if tsk.Tasks[0].MD["submission_response"] != "" {
		t.Fatalf("subtask md not cleared: %q", tsk.Tasks[0].MD["submission_response"])
	}
}

func TestCloneIndependence(t *testing.T) {
	tsk := New(TypePrepare)
	ch := 2
	tsk.Tasks = []SubTask{NewSubTask("lh1")}
	tsk.Tasks[0].Channel = &ch

	cp := tsk.Clone()
	*cp.Tasks[0].Channel = 9
	cp.MD["x"] = "y"

	if *tsk.Tasks[0].Channel != 2 {
		t.Fatalf("mutating clone leaked into original channel")
	}
	if _, ok := tsk.MD["x"]; ok {
		t.Fatalf("mutating clone md leaked into original")
	}
}

func TestFirstLastSingleSubtask(t *testing.T) {
	tsk := New(TypeMeasure)
	tsk.Tasks = []SubTask{NewSubTask("qcmd1")}
	if tsk.First() != tsk.Last() {
		t.Fatalf("single-subtask task should have First == Last")
	}
}
