package queue

import "testing"

func TestBatchMessageValidate(t *testing.T) {
	msg := BatchMessage{
		BatchID:  "b1",
		FilePath: "/tmp/invoice-uploads/b1.csv",
		TaskID:   "t1",
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.BatchID = " "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty batch id")
	}

	msg.BatchID = "b1"
	msg.FilePath = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty file path")
	}

	msg.FilePath = "/tmp/invoice-uploads/b1.csv"
	msg.TaskID = ""
	if err := msg.Validate(); err != nil {
		t.Fatalf("task id is optional, got error: %v", err)
	}
}
