package main

import (
	"os"

	"github.com/nanopore-tools/ontkit/ontkit/cmd"
)

func main() {
	cmd.Execute(os.Args[1:])
}
