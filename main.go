package main

import (
	"context"
	"os"

	"github.com/ferreirogomes/imovelnft/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
