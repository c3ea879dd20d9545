package encoder

import "syscall"

// processGroupAttr puts the encoder subprocess in its own process group so
// Stop and restart-on-crash can signal the whole group (the encoder may
// itself be a wrapper script spawning a child) without disturbing Tower's
// own process group.
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
