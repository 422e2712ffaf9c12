package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/biscuitwizard/vcscore/cmd/vcsd/cli"
	"github.com/biscuitwizard/vcscore/cmd/vcsd/commands"
	"github.com/biscuitwizard/vcscore/vcslog"
)

func main() {
	log := vcslog.Root().With("component", "vcsd")

	cmd, cfg := cli.RootCommand()
	commands.Attach(cmd, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error("vcsd exited with error", "error", err.Error())
		os.Exit(1)
	}
}
