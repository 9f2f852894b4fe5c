package process

import "syscall"

// sysProcAttr puts the AUT in its own process group. Pdeathsig makes the
// kernel signal the AUT if autctl dies first.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
