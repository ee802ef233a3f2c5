package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestLineIndicatorReportsPercent(t *testing.T) {
	var buf bytes.Buffer
	ind := New(Config{Enabled: true, Output: &buf})

	ind.Start(200)
	ind.Update(50)
	ind.Finish()

	out := buf.String()
	if !strings.Contains(out, "validating 200 candidates") {
		t.Errorf("expected start line, got %q", out)
	}
	if !strings.Contains(out, "50/200 (25.0%)") {
		t.Errorf("expected percent update, got %q", out)
	}
	if !strings.Contains(out, "done in") {
		t.Errorf("expected finish line, got %q", out)
	}
}

func TestNoneIndicatorWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	ind := New(Config{Enabled: false, Output: &buf})

	ind.Start(100)
	ind.Update(50)
	ind.Finish()

	if buf.Len() != 0 {
		t.Errorf("expected no output from disabled indicator, got %q", buf.String())
	}
}

func TestSetOutputRedirects(t *testing.T) {
	var first, second bytes.Buffer
	ind := New(Config{Enabled: true, Output: &first})

	ind.SetOutput(&second)
	ind.Start(10)

	if first.Len() != 0 {
		t.Error("expected no output on the original writer after SetOutput")
	}
	if second.Len() == 0 {
		t.Error("expected output on the redirected writer")
	}
}
