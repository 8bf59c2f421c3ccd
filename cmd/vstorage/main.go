// Command vstorage validates storage configurations and exercises the
// storages they describe.
package main

import (
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := NewRootCmd(logger).Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
