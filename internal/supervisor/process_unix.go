//go:build !windows
// +build !windows

package supervisor

import "syscall"

// detachedAttr places the backend in its own process group so terminal
// signals aimed at the daemon do not reach it
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
