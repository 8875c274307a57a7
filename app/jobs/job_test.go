package jobs

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPageCount_JSON(t *testing.T) {
	data, err := json.Marshal(Progress{Status: StatusStarting})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(data), `"total_pages":"unknown"`) {
		t.Errorf("Expected unknown total pages, got %s", data)
	}

	data, _ = json.Marshal(Progress{TotalPages: 4})
	if !strings.Contains(string(data), `"total_pages":4`) {
		t.Errorf("Expected numeric total pages, got %s", data)
	}

	var p Progress
	if err := json.Unmarshal([]byte(`{"total_pages":"unknown"}`), &p); err != nil || p.TotalPages != 0 {
		t.Errorf("Expected unknown to decode as 0, got %d (%v)", p.TotalPages, err)
	}
	if err := json.Unmarshal([]byte(`{"total_pages":7}`), &p); err != nil || p.TotalPages != 7 {
		t.Errorf("Expected 7, got %d (%v)", p.TotalPages, err)
	}
	if err := json.Unmarshal([]byte(`{"total_pages":"many"}`), &p); err == nil {
		t.Error("Expected error for non-numeric page count")
	}
}

func TestState_Terminal(t *testing.T) {
	cases := map[State]bool{
		StatePending:  false,
		StateProgress: false,
		StateSuccess:  true,
		StateFailure:  true,
	}
	for state, expected := range cases {
		if state.Terminal() != expected {
			t.Errorf("Expected %s terminal=%v", state, expected)
		}
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("abc", Request{BaseURL: "https://example.com", PostType: "posts"})

	if job.State != StatePending {
		t.Errorf("Expected PENDING, got %s", job.State)
	}
	if job.Result != nil || job.Error != "" {
		t.Error("Expected a new job without result or error")
	}
	if job.CreatedAt.IsZero() {
		t.Error("Expected creation time to be set")
	}
}
