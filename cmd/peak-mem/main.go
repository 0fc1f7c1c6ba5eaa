package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmitro/peak-mem/internal/cli"
)

func main() {
	err := cli.NewRootCmd().Execute()
	var exitErr *cli.ExitCodeError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "peak-mem:", err)
	}
	os.Exit(cli.ExitCode(err))
}
