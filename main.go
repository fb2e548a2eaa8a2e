package main

import (
	"github.com/lhecker/semd/cmd"
)

func main() {
	cmd.Execute()
}
