package main

import (
	"github.com/robotalks/ld2410s/pkg/cli/sh"
	"github.com/robotalks/ld2410s/pkg/env"
	"github.com/robotalks/ld2410s/pkg/radar"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
	radar.SetupFlags()
}

func main() {
	sh.Main()
}
