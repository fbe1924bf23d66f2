package main

import "github.com/OpenTraceLab/OpenTraceADI/cmd/armdap/cmd"

func main() {
	cmd.Execute()
}
