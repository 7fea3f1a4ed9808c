package main

import (
	"github.com/wardtools/wardprogram/cmd"
)

func main() {
	cmd.Execute()
}
