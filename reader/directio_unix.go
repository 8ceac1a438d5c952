//go:build !windows

package reader

import "os"

// oDirect is Linux's O_DIRECT flag value, used by original_source/src/plot.rs's
// open_using_direct_io. It is a no-op custom flag on platforms (including
// non-Linux Unix) whose kernel does not honor it on open, in which case the
// read simply goes through the page cache; direct-I/O eligibility is
// already gated per-drive by bus type before this is used.
const oDirect = 0o0_040_000

// openPlot opens path for reading, using direct I/O when requested and
// falling back silently to a regular open on platforms where O_DIRECT is
// rejected by the filesystem.
func openPlot(path string, direct bool) (*os.File, error) {
	flags := os.O_RDONLY
	if direct {
		flags |= oDirect
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil && direct {
		return os.OpenFile(path, os.O_RDONLY, 0)
	}
	return f, err
}
