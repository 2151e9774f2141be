package main

import (
	"os"

	"github.com/kubo-market/airwatch/cmd/airwatch/cli"
)

func main() {
	if err := cli.New().Execute(); err != nil {
		os.Exit(1)
	}
}
