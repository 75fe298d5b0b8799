package main

// ============================================================================
// 職責說明：
// 1. CLI 應用程式入口點
// 2. 執行 cli.BuildCLI() 建立的指令
// 3. 處理頂層 panic，錯誤時以非零狀態結束
// ============================================================================

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/labelmaker/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	// cobra 已將錯誤印到 stderr
	if err := cli.BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
