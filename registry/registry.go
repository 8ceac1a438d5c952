// Package registry discovers, validates, and groups plot files by physical
// drive. It is grounded on original_source/src/plot.rs's Meta/Plot types
// for the on-disk contract and utils.rs for the platform probes, rendered
// in the corpus's own style of a constructor that walks configured
// directories and builds an immutable in-memory index (compare
// modules/host/contractmanager's storage folder discovery at startup).
package registry

import (
	"os"
	"path/filepath"
	"sort"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/poc"
)

// Drive groups every plot the Registry found on one physical device.
type Drive struct {
	ID         string
	SectorSize uint64
	BusType    string
	Plots      []Plot
}

// DirectIOEligible reports whether this drive's bus type supports direct
// I/O; USB and other removable media do not.
func (d Drive) DirectIOEligible() bool {
	switch d.BusType {
	case "usb", "unknown":
		return false
	default:
		return true
	}
}

// TotalNonces returns the sum of every plot's effective (post-trim) nonce
// count on this drive.
func (d Drive) TotalNonces() uint64 {
	var total uint64
	for _, p := range d.Plots {
		total += p.Meta.Nonces
	}
	return total
}

// Plot is one on-disk plot file as tracked by the Registry: its parsed
// metadata (already trimmed for overlaps) and its filesystem path.
type Plot struct {
	Meta poc.Meta
	Path string
}

// Registry is the immutable result of scanning a set of directories once at
// startup. It never mutates after New/NewBenchmark returns.
type Registry struct {
	drives   []Drive
	log      *persist.Logger
	benchmark bool
}

// Logf writes a line to the registry's logger if one was configured,
// otherwise it is a silent no-op so tests need not set one up.
func (r *Registry) logf(format string, args ...interface{}) {
	if r.log == nil {
		return
	}
	r.log.Printf(format, args...)
}

// New scans dirs for plot files, validates them, groups them by drive, and
// resolves overlaps. Directories may use a leading ~ for the user's home.
func New(dirs []string, log *persist.Logger) (*Registry, error) {
	return build(dirs, log, false)
}

// NewBenchmark behaves like New but marks every discovered plot as a dummy
// plot for throughput benchmarking (reads are skipped, buffers are
// zero-filled) instead of touching the disk.
func NewBenchmark(dirs []string, log *persist.Logger) (*Registry, error) {
	return build(dirs, log, true)
}

func build(dirs []string, log *persist.Logger, benchmark bool) (*Registry, error) {
	r := &Registry{log: log, benchmark: benchmark}

	var found []located

	for _, dir := range dirs {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			r.logf("could not expand plot directory %q: %v", dir, err)
			continue
		}
		entries, err := os.ReadDir(expanded)
		if err != nil {
			r.logf("could not read plot directory %q: %v", expanded, err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(expanded, entry.Name())
			meta, err := poc.ParsePlotName(entry.Name())
			if err != nil {
				r.logf("skipping %q: %v", path, err)
				continue
			}
			info, err := entry.Info()
			if err != nil {
				r.logf("skipping %q: could not stat: %v", path, err)
				continue
			}
			if uint64(info.Size()) != meta.ExpectedSize() {
				r.logf("skipping %q: expected size %d, got %d", path, meta.ExpectedSize(), info.Size())
				continue
			}
			device := deviceID(path)
			found = append(found, located{meta: meta, path: path, device: device})
		}
	}

	byDevice := make(map[string][]located)
	for _, f := range found {
		byDevice[f.device] = append(byDevice[f.device], f)
	}

	for device, plots := range byDevice {
		trimmed := trimOverlaps(plots, r)
		if len(trimmed) == 0 {
			continue
		}
		samplePath := trimmed[0].path
		drive := Drive{
			ID:         device,
			SectorSize: sectorSize(samplePath),
			BusType:    busType(samplePath),
		}
		for _, t := range trimmed {
			drive.Plots = append(drive.Plots, Plot{Meta: t.meta, Path: t.path})
		}
		r.drives = append(r.drives, drive)
	}

	sort.Slice(r.drives, func(i, j int) bool { return r.drives[i].ID < r.drives[j].ID })
	return r, nil
}

// located is a plot discovered during a directory scan, before it has been
// assigned to a Drive.
type located struct {
	meta   poc.Meta
	path   string
	device string
}

// trimOverlaps applies §4.1's overlap-trimming rule per (device, account)
// bucket: sort by start nonce, and for any pair where a's range runs into
// b's, trim b's effective start forward past a's end. A plot trimmed down
// to zero effective nonces is dropped.
func trimOverlaps(plots []located, r *Registry) []located {
	byAccount := make(map[uint64][]located)
	for _, p := range plots {
		byAccount[p.meta.AccountID] = append(byAccount[p.meta.AccountID], p)
	}

	var out []located
	for _, group := range byAccount {
		sort.Slice(group, func(i, j int) bool { return group[i].meta.StartNonce < group[j].meta.StartNonce })
		for i := 1; i < len(group); i++ {
			prev := group[i-1]
			cur := &group[i]
			prevEnd := prev.meta.StartNonce + prev.meta.Nonces
			if prevEnd > cur.meta.StartNonce {
				overlap := prevEnd - cur.meta.StartNonce
				r.logf("overlap: %s and %s share %d nonces", prev.meta.Name, cur.meta.Name, overlap)
				newStart := prevEnd
				if newStart >= cur.meta.StartNonce+cur.meta.Nonces {
					cur.meta.Nonces = 0
				} else {
					cur.meta.Nonces = cur.meta.StartNonce + cur.meta.Nonces - newStart
					cur.meta.StartNonce = newStart
				}
			}
		}
		for _, p := range group {
			if p.meta.Nonces > 0 {
				out = append(out, p)
			}
		}
	}
	return out
}

// Drives returns the immutable list of drive groups found at startup.
func (r *Registry) Drives() []Drive {
	return r.drives
}

// Benchmark reports whether this registry was opened in dummy/benchmark
// mode.
func (r *Registry) Benchmark() bool {
	return r.benchmark
}

// TotalCapacityBytes returns the total plotted capacity across every drive.
func (r *Registry) TotalCapacityBytes() uint64 {
	var total uint64
	for _, d := range r.drives {
		for _, p := range d.Plots {
			total += p.Meta.ExpectedSize()
		}
	}
	return total
}
