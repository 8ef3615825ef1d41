//go:build !unix

package process

import "errors"

// ReadRusage is unsupported on this platform.
func ReadRusage() (user, system int64, err error) {
	return 0, 0, errors.New("process: getrusage not supported on this platform")
}
