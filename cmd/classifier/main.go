// Package main is the entry point for the triplet classifier service.
package main

import (
	"os"

	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/triplet-classifier/cmd/classifier/app"
)

func main() {
	if err := app.NewClassifierCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
