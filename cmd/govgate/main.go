package main

import (
	"os"

	"github.com/govgate/govgate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
