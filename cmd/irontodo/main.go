package main

import (
	"errors"
	"os"

	"github.com/existflow/irontodo/internal/cli"
	"github.com/existflow/irontodo/internal/config"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, config.ErrMissingBackend) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
