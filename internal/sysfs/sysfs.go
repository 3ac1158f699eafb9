// Package sysfs reads the Linux configuration that decides whether the
// cycle counter can be trusted: the selected clock source, the CPU feature
// flags and the list of online CPUs.
package sysfs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/randomizedcoder/tscclock/internal/counter"
)

const (
	clockSourcePath = "sys/devices/system/clocksource/clocksource0/current_clocksource"
	onlineCPUsPath  = "sys/devices/system/cpu/online"
	cpuInfoPath     = "proc/cpuinfo"
)

// FS reads configuration files below Root. An empty Root means "/".
type FS struct {
	Root string
}

func (f FS) path(rel string) string {
	root := f.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, rel)
}

func (f FS) readTrimmed(rel string) (string, error) {
	b, err := os.ReadFile(f.path(rel))
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", rel)
	}
	return strings.TrimSpace(string(b)), nil
}

// ClockSource returns the kernel's currently selected clock source, e.g. "tsc".
func (f FS) ClockSource() (string, error) {
	return f.readTrimmed(clockSourcePath)
}

// CPUFlags returns the feature flags of the first processor listed in
// /proc/cpuinfo. The kernel only advertises flags common to all CPUs.
func (f FS) CPUFlags() ([]string, error) {
	file, err := os.Open(f.path(cpuInfoPath))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", cpuInfoPath)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "flags" {
			continue
		}
		return strings.Fields(value), nil
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "scanning %s", cpuInfoPath)
	}
	return nil, errors.Errorf("no flags line in %s", cpuInfoPath)
}

// OnlineCPUs returns the ids of the online CPUs.
func (f FS) OnlineCPUs() ([]counter.CoreID, error) {
	s, err := f.readTrimmed(onlineCPUsPath)
	if err != nil {
		return nil, err
	}
	return ParseCPUList(s)
}
