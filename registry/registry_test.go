package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signum-network/gopoc-miner/poc"
)

func writePlot(t *testing.T, dir string, meta poc.Meta) string {
	t.Helper()
	path := filepath.Join(dir, meta.FileName())
	if err := os.WriteFile(path, make([]byte, meta.ExpectedSize()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewSkipsMalformedAndMissizedFiles(t *testing.T) {
	dir := t.TempDir()
	writePlot(t, dir, poc.Meta{AccountID: 1, StartNonce: 0, Nonces: 1})
	if err := os.WriteFile(filepath.Join(dir, "not_a_plot"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "1_0_2"), []byte("too short"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := New([]string{dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, d := range r.Drives() {
		total += len(d.Plots)
	}
	if total != 1 {
		t.Fatalf("expected exactly 1 valid plot, got %d", total)
	}
}

func TestOverlapTrimming(t *testing.T) {
	dir := t.TempDir()
	writePlot(t, dir, poc.Meta{AccountID: 42, StartNonce: 0, Nonces: 1000})
	writePlot(t, dir, poc.Meta{AccountID: 42, StartNonce: 500, Nonces: 1000})

	r, err := New([]string{dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	var total uint64
	for _, d := range r.Drives() {
		for _, p := range d.Plots {
			total += p.Meta.Nonces
		}
	}
	if total != 2000 {
		t.Fatalf("expected 2000 unique nonces after trim, got %d", total)
	}
}

func TestOverlapTrimDropsFullyContainedPlot(t *testing.T) {
	dir := t.TempDir()
	writePlot(t, dir, poc.Meta{AccountID: 7, StartNonce: 0, Nonces: 1000})
	writePlot(t, dir, poc.Meta{AccountID: 7, StartNonce: 100, Nonces: 50})

	r, err := New([]string{dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	var count int
	for _, d := range r.Drives() {
		count += len(d.Plots)
	}
	if count != 1 {
		t.Fatalf("expected the fully-contained plot to be dropped, got %d plots", count)
	}
}

func TestDistinctAccountsDoNotTrim(t *testing.T) {
	dir := t.TempDir()
	writePlot(t, dir, poc.Meta{AccountID: 1, StartNonce: 0, Nonces: 100})
	writePlot(t, dir, poc.Meta{AccountID: 2, StartNonce: 0, Nonces: 100})

	r, err := New([]string{dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	var total uint64
	for _, d := range r.Drives() {
		for _, p := range d.Plots {
			total += p.Meta.Nonces
		}
	}
	if total != 200 {
		t.Fatalf("expected no trimming across distinct accounts, got %d nonces", total)
	}
}

func TestNewBenchmarkMarksRegistry(t *testing.T) {
	dir := t.TempDir()
	writePlot(t, dir, poc.Meta{AccountID: 1, StartNonce: 0, Nonces: 1})

	r, err := NewBenchmark([]string{dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Benchmark() {
		t.Fatal("expected benchmark mode to be recorded")
	}
}

func TestDriveDirectIOEligible(t *testing.T) {
	usb := Drive{BusType: "usb"}
	fixed := Drive{BusType: "fixed"}
	unknown := Drive{BusType: "unknown"}

	if usb.DirectIOEligible() {
		t.Error("usb drives should not be direct-io eligible")
	}
	if !fixed.DirectIOEligible() {
		t.Error("fixed drives should be direct-io eligible")
	}
	if unknown.DirectIOEligible() {
		t.Error("unknown bus type should not be direct-io eligible")
	}
}
