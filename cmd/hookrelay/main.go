package main

import (
	"os"

	"github.com/telhawk-systems/hookrelay/internal/cli"
)

func main() {
	cli.Execute()
	os.Exit(0)
}
