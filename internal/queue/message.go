package queue

import (
	"fmt"
	"strings"
)

// BatchMessage is the broker payload for batch processing. FilePath points
// at the uploaded file staged on shared storage; the worker removes it once
// the batch is processed.
type BatchMessage struct {
	BatchID  string `json:"batchId"`
	FilePath string `json:"filePath"`
	TaskID   string `json:"taskId,omitempty"`
}

func (m BatchMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if strings.TrimSpace(m.FilePath) == "" {
		return fmt.Errorf("filePath is required")
	}
	return nil
}
