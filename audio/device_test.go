package audio

import (
	"testing"
)

func TestPrintDevices(t *testing.T) {
	if err := PrintDevices(); err != nil {
		t.Skip("no audio host available:", err)
	}
}
