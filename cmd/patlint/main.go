package main

import (
	"os"

	"github.com/gnolang/patlint/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
