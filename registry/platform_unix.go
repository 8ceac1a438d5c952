//go:build !windows

// Package registry's platform probes shell out to the same commands the
// original implementation uses (stat/df/lsblk/diskutil), grounded on
// utils.rs's get_device_id/get_sector_size/get_bus_type chain. Every probe
// degrades to a safe default on failure rather than propagating an error,
// matching the source's "warn and use 4096" policy.
package registry

import (
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

const defaultSectorSize = 4096

// deviceID resolves the device id backing path via `stat -c %D`.
func deviceID(path string) string {
	out, err := exec.Command("stat", path, "-c", "%D").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// mountSource resolves the filesystem source backing path via `df`, used
// as the argument to lsblk/diskutil.
func mountSource(path string) string {
	out, err := exec.Command("df", path).Output()
	if err != nil {
		return "unknown"
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) <= 1 {
		return "unknown"
	}
	fields := strings.Fields(lines[1])
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[0]
}

func sectorSize(path string) uint64 {
	if runtime.GOOS == "darwin" {
		return sectorSizeMacOS(path)
	}
	return sectorSizeLinux(path)
}

func sectorSizeLinux(path string) uint64 {
	source := mountSource(path)
	out, err := exec.Command("lsblk", source, "-o", "PHY-SeC").Output()
	if err != nil {
		return defaultSectorSize
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) <= 1 {
		return defaultSectorSize
	}
	size, err := strconv.ParseUint(strings.TrimSpace(lines[1]), 10, 64)
	if err != nil || size == 0 {
		return defaultSectorSize
	}
	return size
}

func sectorSizeMacOS(path string) uint64 {
	source := mountSource(path)
	out, err := exec.Command("diskutil", "info", source).Output()
	if err != nil {
		return defaultSectorSize
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Device Block Size") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		size, err := strconv.ParseUint(fields[len(fields)-2], 10, 64)
		if err == nil && size != 0 {
			return size
		}
	}
	return defaultSectorSize
}

func busType(path string) string {
	if runtime.GOOS != "linux" {
		return "unknown"
	}
	source := mountSource(path)
	out, err := exec.Command("lsblk", source, "-ndo", "TRAN").Output()
	if err != nil {
		return "unknown"
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) == 0 {
		return "unknown"
	}
	return strings.ToLower(strings.TrimSpace(lines[0]))
}
