// Package proctable queries the OS process table. The engine only ever asks
// two questions of it: is this pid alive, and when did it start.
//
// The Table interface exists so resolvers can be tested with fakes; the real
// implementation reads /proc and sends signal 0 via golang.org/x/sys/unix.
package proctable

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Table abstracts process-table queries needed by the liveness resolver.
// Satisfied by ProcTable; mockable in tests.
type Table interface {
	// Alive reports whether the pid refers to a live process. An error
	// means the query itself failed and the caller should treat liveness
	// as unknown.
	Alive(pid int) (bool, error)

	// StartTime returns the process start time when the OS exposes it.
	StartTime(pid int) (time.Time, error)
}

// ProcTable is the Linux /proc-backed Table.
type ProcTable struct{}

// Alive probes the pid with signal 0. EPERM still means the process exists;
// ESRCH means it does not.
func (ProcTable) Alive(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("proctable: invalid pid %d", pid)
	}
	err := unix.Kill(pid, 0)
	switch err {
	case nil, unix.EPERM:
		return true, nil
	case unix.ESRCH:
		return false, nil
	default:
		return false, fmt.Errorf("proctable: probing pid %d: %w", pid, err)
	}
}

// clockTicksPerSecond is the kernel's USER_HZ. Fixed at 100 on every
// supported Linux architecture.
const clockTicksPerSecond = 100

// StartTime reads the process start time from /proc/<pid>/stat (field 22,
// clock ticks since boot) anchored at the boot time from /proc/stat.
func (ProcTable) StartTime(pid int) (time.Time, error) {
	if pid <= 0 {
		return time.Time{}, fmt.Errorf("proctable: invalid pid %d", pid)
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return time.Time{}, fmt.Errorf("proctable: reading stat for pid %d: %w", pid, err)
	}

	// The comm field (2) is parenthesized and may contain spaces; fields
	// are counted from after the closing paren.
	s := string(data)
	i := strings.LastIndexByte(s, ')')
	if i < 0 {
		return time.Time{}, fmt.Errorf("proctable: malformed stat for pid %d", pid)
	}
	fields := strings.Fields(s[i+1:])
	// Field 22 (starttime) is index 19 after state (3) at index 0.
	if len(fields) < 20 {
		return time.Time{}, fmt.Errorf("proctable: short stat for pid %d", pid)
	}
	ticks, err := strconv.ParseUint(fields[19], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("proctable: parsing starttime for pid %d: %w", pid, err)
	}

	boot, err := bootTime()
	if err != nil {
		return time.Time{}, err
	}

	offset := time.Duration(ticks) * time.Second / clockTicksPerSecond
	return boot.Add(offset), nil
}

// bootTime reads the btime line from /proc/stat.
func bootTime() (time.Time, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return time.Time{}, fmt.Errorf("proctable: reading /proc/stat: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "btime "); ok {
			sec, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("proctable: parsing btime: %w", err)
			}
			return time.Unix(sec, 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("proctable: btime not found in /proc/stat")
}
