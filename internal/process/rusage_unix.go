//go:build unix

package process

import "golang.org/x/sys/unix"

// ReadRusage returns the process's cumulative user and system CPU time in microseconds.
func ReadRusage() (user, system int64, err error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, 0, err
	}
	return ru.Utime.Nano() / 1000, ru.Stime.Nano() / 1000, nil
}
