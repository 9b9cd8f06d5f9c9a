package main

import (
	"os"

	"otpreport/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewAlertCommand(cli.Options{})))
}
