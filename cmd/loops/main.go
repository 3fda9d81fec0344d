package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/opencatalog/fem/cmd/loops/recurring"
	kcfg "github.com/opencatalog/fem/pkg/configs/engine"
	"github.com/opencatalog/fem/pkg/conn/postgres/pool"
	"github.com/opencatalog/fem/pkg/db/postgres/schema"
	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/utils/args"
	"github.com/opencatalog/fem/pkg/utils/filewatch"
	"github.com/opencatalog/fem/pkg/utils/try"
)

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	// call cancel() when this function exits
	defer cancel()

	// define command line flags
	//-- path to config file
	pconfig := flag.String(
		"config", os.Getenv("FEM_CONFIG"), "path to config file",
	)
	//-- which loop type to run
	loopType := args.Parser(domain.AsLoopType)
	flag.Var(
		loopType, "type",
		"one of loop type: creation|update|deletion|copy|notification|reference|notifying|sweeping",
	)
	//-- loop policy
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as inteval.`+
			` "backlog" = run until error or backlog is over.`,
	)
	// parse command line flags
	flag.Parse()

	if !loopType.IsSet() {
		logger.Fatal("-type is required")
	}

	{
		// watch config
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(kcfg.LoadEngineConfig(*pconfig)).OrFatal(logger)

	if err := schema.Upgrade(ctx, conf.Database()); err != nil {
		logger.Fatal(err)
	}

	pgpool := try.To(pool.Connect(ctx, conf.Database())).OrFatal(logger)
	defer pgpool.Close()

	loopPolicy := recurring.Policy(recurring.Forever(conf.Scheduler().Interval()))
	if policy.IsSet() {
		loopPolicy = policy.Value()
	}

	logger.Printf(
		`start loop "%s" /w policy "%s"`,
		loopType.Value().String(), loopPolicy.String(),
	)

	err := StartLoop(
		ctx, logger, conf, pgpool,
		LoopManifest{
			Type:   loopType.Value(),
			Policy: recurring.UntilError(loopPolicy),
		},
	)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}

	logger.Fatal(err)
}
