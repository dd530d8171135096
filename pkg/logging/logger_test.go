package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriterLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, false)

	logger.Errorf("disk %s", "gone")
	logger.Warn("slow flush")
	logger.Infof("opened %d files", 2)
	logger.Debug("hidden")

	out := buf.String()
	for _, want := range []string{"[ERROR] ", "disk gone", "[WARN] ", "slow flush", "[INFO] ", "opened 2 files"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written with debug disabled:\n%s", out)
	}
}

func TestWriterLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, true)

	logger.Debugf("chunk %d", 7)
	if !strings.Contains(buf.String(), "[DEBUG] ") || !strings.Contains(buf.String(), "chunk 7") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Error("x")
	logger.Errorf("%d", 1)
	logger.Info("x")
}
