package main

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

type ConfigSetCmd struct {
	Config string `arg:"" help:"Configuration name to change: lanes.base, lanes.refs, checkout.uncommitted, user.name or user.email."`
	Value  string `arg:"" help:"Configuration value to set. Empty removes it."`
}

func (c *ConfigSetCmd) Run(ctx *context) error {
	fmt.Printf("Setting '%v' = '%v'\n", c.Config, c.Value)

	return ctx.ws.SetConfig(c.Config, c.Value)
}

type ConfigShowCmd struct {
}

func (c *ConfigShowCmd) Run(ctx *context) error {
	cfg, err := ctx.ws.Config()
	if err != nil {
		return err
	}

	keys := lo.Keys(cfg)
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("%v = %v\n", k, cfg[k])
	}

	return nil
}
