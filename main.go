package main

import (
	"os"

	"github.com/jobtide/jobtide/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
