//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package worker

import "os/exec"

// 沒有 process group 的平台只結束直接子程序（exec.CommandContext 預設行為）
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
