// ====================================
// File: cmd/bundler/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"generate", "create trading wallets", runGenerate},
	{"balances", "refresh and print wallet balances", runBalances},
	{"fund", "split SOL from the funding wallet across trading wallets", runFund},
	{"collect", "sweep trading wallet balances back to one address", runCollect},
	{"bundle-buy", "buy a token from many wallets through Jito bundles", runBundleBuy},
	{"spread-buy", "buy a token from each wallet in turn", runSpreadBuy},
	{"sell-all", "sell each wallet's full token balance", runSellAll},
	{"holdings", "show tracked holdings and on-chain balances of a token", runHoldings},
	{"history", "list journaled campaign summaries", runHistory},
	{"export", "export journaled summaries to CSV or JSON", runExport},
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("bundler", flag.ContinueOnError)
	configPath := global.String("config", "configs/config.yaml", "path to the config file (empty for env only)")
	global.Usage = func() { usage(global) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(global)
		return 2
	}

	name, rest := global.Arg(0), global.Args()[1:]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		usage(global)
		return 2
	}

	// SIGINT stops a running sweep between wallets; in-flight transactions finish.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		return 1
	}
	defer a.close()

	if err := cmd.run(ctx, a, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		a.logger.Error("Command failed", zap.String("command", name), zap.Error(err))
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: bundler [-config path] <command> [flags]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(os.Stderr, "\nglobal flags:")
	fs.PrintDefaults()
}
