//go:build unix && !linux

package process

import "syscall"

// sysProcAttr puts the AUT in its own process group.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}
