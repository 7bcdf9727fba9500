package main

import (
	"os"

	"github.com/sirupsen/logrus"

	_ "github.com/denysvitali/ha-smartcharge/cmd/charge"
	_ "github.com/denysvitali/ha-smartcharge/cmd/plan"
	"github.com/denysvitali/ha-smartcharge/cmd/root"
	_ "github.com/denysvitali/ha-smartcharge/cmd/run"
	_ "github.com/denysvitali/ha-smartcharge/cmd/scheduled"
	_ "github.com/denysvitali/ha-smartcharge/cmd/version"
)

func main() {
	if err := root.RootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
