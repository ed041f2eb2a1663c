package main

import (
	"os"

	"github.com/caesay/osu/client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
