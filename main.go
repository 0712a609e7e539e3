package main

import (
	"github.com/gotrigger/crankdecoder/cmd"
	"github.com/gotrigger/crankdecoder/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
