package main

import (
	"os"

	"github.com/huyongqii/green-energy/cmd/greensched/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
