package playout

import "syscall"

// processGroupAttr puts the decoder subprocess in its own process group so
// it can be signaled independently of Station's own process group (same
// discipline as the Tower-side encoder supervisor).
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
