//go:build windows

package reader

import (
	"os"

	"golang.org/x/sys/windows"
)

// fileFlagNoBuffering is Windows's equivalent of O_DIRECT, used by
// original_source/src/plot.rs's Windows open_using_direct_io.
const fileFlagNoBuffering = 0x2000_0000

// openPlot opens path for reading, requesting FILE_FLAG_NO_BUFFERING when
// direct is true.
func openPlot(path string, direct bool) (*os.File, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	attrs := uint32(windows.FILE_ATTRIBUTE_NORMAL)
	if direct {
		attrs |= fileFlagNoBuffering
	}
	h, err := windows.CreateFile(p, windows.GENERIC_READ, windows.FILE_SHARE_READ, nil,
		windows.OPEN_EXISTING, attrs, 0)
	if err != nil {
		if direct {
			return openPlot(path, false)
		}
		return nil, err
	}
	return os.NewFile(uintptr(h), path), nil
}
