package persist

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signum-network/gopoc-miner/build"
)

// TestLogger checks that the basic functions of the file logger work as
// designed.
func TestLogger(t *testing.T) {
	testdir := build.TempDir("persist", t.Name())
	if err := os.MkdirAll(testdir, 0700); err != nil {
		t.Fatal(err)
	}

	logFilename := filepath.Join(testdir, "test.log")
	l, err := NewLogger(logFilename)
	if err != nil {
		t.Fatal(err)
	}

	l.Println("TEST: this should get written to the logfile")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	expectedSubstring := []string{"STARTUP", "TEST", "SHUTDOWN", ""} // file ends with a newline
	fileData, err := ioutil.ReadFile(logFilename)
	if err != nil {
		t.Fatal(err)
	}
	fileLines := strings.Split(string(fileData), "\n")
	if len(fileLines) != 4 {
		t.Fatal("logger did not create the correct number of lines:", len(fileLines))
	}
	for i, line := range fileLines {
		if !strings.Contains(line, expectedSubstring[i]) {
			t.Error("did not find the expected message in the logger")
		}
	}
}

// TestLoggerCritical checks that Critical panics when build.DEBUG is set.
func TestLoggerCritical(t *testing.T) {
	build.TestingSetDebug(true)
	defer build.TestingSetDebug(false)

	testdir := build.TempDir("persist", t.Name())
	if err := os.MkdirAll(testdir, 0700); err != nil {
		t.Fatal(err)
	}

	logFilename := filepath.Join(testdir, "test.log")
	l, err := NewLogger(logFilename)
	if err != nil {
		t.Fatal(err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("critical message was not thrown in a panic")
		}
		if err := l.Close(); err != nil {
			t.Fatal(err)
		}
	}()
	l.Critical("a critical message")
}
