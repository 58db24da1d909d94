package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", "json", &buf)

	l.Info("hidden")
	l.WithFields(logrus.Fields{"meeting_id": "evt_001"}).Warn("skipped event")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info entry written at warn level: %s", out)
	}
	if !strings.Contains(out, `"meeting_id":"evt_001"`) {
		t.Errorf("output = %s, want JSON field", out)
	}
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	l := New("loud", "text", &bytes.Buffer{})
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info", l.GetLevel())
	}
}

func TestAddErrorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "errors.log")
	l := New("debug", "text", &bytes.Buffer{})
	if err := AddErrorFile(l, path); err != nil {
		t.Fatalf("AddErrorFile: %v", err)
	}

	l.Warn("not recorded")
	l.WithError(errors.New("disk full")).Error("archive failed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	if strings.Contains(string(data), "not recorded") {
		t.Errorf("warning written to error log")
	}
	if !strings.Contains(string(data), "disk full") {
		t.Errorf("error log = %s", data)
	}
}
