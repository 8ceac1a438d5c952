//go:build windows

package registry

import (
	"path/filepath"

	"golang.org/x/sys/windows"
)

const defaultSectorSize = 4096

// deviceID resolves the volume path backing path via GetVolumePathNameW,
// mirroring utils.rs's Windows get_device_id.
func deviceID(path string) string {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return path
	}
	buf := make([]uint16, len(path)+1)
	if err := windows.GetVolumePathName(p, &buf[0], uint32(len(buf))); err != nil {
		return path
	}
	return windows.UTF16ToString(buf)
}

func sectorSize(path string) uint64 {
	parent := filepath.Dir(path)
	p, err := windows.UTF16PtrFromString(parent)
	if err != nil {
		return defaultSectorSize
	}
	var sectorsPerCluster, bytesPerSector, freeClusters, totalClusters uint32
	if err := windows.GetDiskFreeSpace(p, &sectorsPerCluster, &bytesPerSector, &freeClusters, &totalClusters); err != nil {
		return defaultSectorSize
	}
	if bytesPerSector == 0 {
		return defaultSectorSize
	}
	return uint64(bytesPerSector)
}

func busType(path string) string {
	parent := filepath.Dir(path)
	p, err := windows.UTF16PtrFromString(parent)
	if err != nil {
		return "unknown"
	}
	driveType := windows.GetDriveType(p)
	switch driveType {
	case windows.DRIVE_REMOVABLE:
		return "usb"
	case windows.DRIVE_FIXED:
		return "fixed"
	case windows.DRIVE_REMOTE:
		return "remote"
	case windows.DRIVE_CDROM:
		return "cdrom"
	case windows.DRIVE_RAMDISK:
		return "ramdisk"
	default:
		return "unknown"
	}
}
