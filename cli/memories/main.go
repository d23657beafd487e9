package main

import (
	"errors"
	"os"

	memoriescmder "github.com/papercomputeco/memories/cmd/memories"
	"github.com/papercomputeco/memories/pkg/cliui"
)

func main() {
	cmd := memoriescmder.NewMemoriesCmd()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, cliui.ErrReported) {
			_ = cliui.WriteError(os.Stderr, err.Error())
		}
		os.Exit(1)
	}
}
