package main

import (
	"os"

	"github.com/isometry/terraform-provider-ldaplookup/cmd/ldaplookup/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
