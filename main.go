package main

import (
	"ClipDeck/cmd"
)

func main() {
	// Cobra 负责命令分发，出错时已在 Execute 内退出
	cmd.Execute()
}
