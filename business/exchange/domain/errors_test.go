package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"reset", errors.New("read tcp 10.0.0.1:443: connection reset by peer"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"closed network", errors.New("use of closed network connection"), true},
		{"timeout", errors.New("read: i/o timeout"), true},
		{"ws close", errors.New("websocket: close 1006 (abnormal closure)"), true},
		{"wrapped", fmt.Errorf("stream: %w", errors.New("broken pipe")), true},
		{"venue rejection", errors.New("<APIError> code=-2019, msg=Margin is insufficient"), false},
		{"bad symbol", errors.New("invalid symbol"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
