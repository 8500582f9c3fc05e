package domain

import "testing"

func TestSendResult_Retryable(t *testing.T) {
	tests := []struct {
		name string
		res  SendResult
		want bool
	}{
		{"success", SendResult{Success: true}, false},
		{"transient", SendResult{Class: FailureTransient}, true},
		{"unclassified", SendResult{Error: "gateway returned 502"}, true},
		{"permanent", SendResult{Class: FailurePermanent}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
