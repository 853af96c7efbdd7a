package main

import (
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/app"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/config"
)

func main() {
	app.Go(config.Load())
}
