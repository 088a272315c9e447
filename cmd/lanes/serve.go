package main

import (
	"github.com/pescuma/lanes/lib/server"
)

type ServeCmd struct {
	Port uint `default:"2427" help:"Port to listen to."`
}

func (c *ServeCmd) Run(ctx *context) error {
	return server.Run(ctx.ws, &server.Options{
		Port: c.Port,
	})
}
