package sysfs

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/randomizedcoder/tscclock/internal/counter"
)

// ErrBadCPUList is returned for text that is not in the kernel's cpu list format.
var ErrBadCPUList = errors.New("sysfs: malformed cpu list")

// maxCoreID bounds ids well above any kernel's NR_CPUS.
const maxCoreID = 1<<16 - 1

// ParseCPUList parses the kernel's cpu list format, e.g. "0-2,7,12-14",
// into sorted, de-duplicated core ids. Surrounding whitespace, including
// the trailing newline sysfs emits, is ignored.
func ParseCPUList(s string) ([]counter.CoreID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.Wrap(ErrBadCPUList, "empty list")
	}

	var ids []counter.CoreID
	for _, tok := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(tok, "-")
		first, err := parseID(lo)
		if err != nil {
			return nil, errors.Wrapf(err, "token %q", tok)
		}
		last := first
		if isRange {
			if last, err = parseID(hi); err != nil {
				return nil, errors.Wrapf(err, "token %q", tok)
			}
			if last < first {
				return nil, errors.Wrapf(ErrBadCPUList, "reversed range %q", tok)
			}
		}
		for id := first; id <= last; id++ {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func parseID(s string) (counter.CoreID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n > maxCoreID {
		return 0, errors.Wrapf(ErrBadCPUList, "bad cpu id %q", s)
	}
	return counter.CoreID(n), nil
}
