package main

import (
	"os"

	"github.com/birmacher/capoeira-portal/cmd"
	"github.com/birmacher/capoeira-portal/logger"
)

func main() {
	err := cmd.Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
