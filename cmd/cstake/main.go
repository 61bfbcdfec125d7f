// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/cstake/cstake/api"
	"github.com/cstake/cstake/kv"
	"github.com/cstake/cstake/log"
	"github.com/cstake/cstake/logdb"
	"github.com/cstake/cstake/metrics"
	"github.com/cstake/cstake/node"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "cstake",
		Usage:     "Confidential staking node",
		Copyright: "2025 The cstake developers",
		Flags: []cli.Flag{
			dataDirFlag,
			genesisFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiLogsLimitFlag,
			enableAPILogsFlag,
			pprofFlag,
			verbosityFlag,
			jsonLogsFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			cacheFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:  "solo",
				Usage: "run an ephemeral in-memory node for test & dev",
				Flags: []cli.Flag{
					genesisFlag,
					apiAddrFlag,
					apiCorsFlag,
					apiLogsLimitFlag,
					enableAPILogsFlag,
					pprofFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: soloAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	dataDir := makeDataDir(ctx)

	masterKey, err := loadMasterKey(dataDir)
	if err != nil {
		fatal(err)
	}

	mainDB := openMainDB(ctx, dataDir)
	defer func() { logger.Info("closing main database..."); mainDB.Close() }()

	logDB := openLogDB(dataDir)
	defer func() { logger.Info("closing log database..."); logDB.Close() }()

	n, err := node.New(mainDB, logDB, node.Options{
		MasterKey: masterKey,
		Genesis:   loadGenesis(ctx),
	})
	if err != nil {
		fatal(err)
	}

	return runNode(ctx, n, dataDir)
}

func soloAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)

	mainDB, err := kv.NewMem()
	if err != nil {
		fatal(err)
	}
	defer mainDB.Close()

	logDB, err := logdb.NewMem()
	if err != nil {
		fatal(err)
	}
	defer logDB.Close()

	// fixed dev key, everything lives in ram anyway
	var masterKey [32]byte
	copy(masterKey[:], "cstake-solo-master-key")

	n, err := node.New(mainDB, logDB, node.Options{
		MasterKey: masterKey,
		Genesis:   loadGenesis(ctx),
	})
	if err != nil {
		fatal(err)
	}

	return runNode(ctx, n, "Memory")
}

func runNode(ctx *cli.Context, n *node.Node, instanceDir string) error {
	apiHandler, apiCloser := api.New(n, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
		LogsLimit:       ctx.Uint64(apiLogsLimitFlag.Name),
	})
	defer apiCloser()

	apiSrv, apiURL := startAPIServer(ctx, apiHandler)
	defer func() { logger.Info("stopping API server..."); apiSrv.Shutdown(context.Background()) }()

	var metricsSrv *http.Server
	var metricsURL string
	if ctx.Bool(enableMetricsFlag.Name) {
		metricsSrv, metricsURL = startMetricsServer(ctx)
		defer func() { logger.Info("stopping metrics server..."); metricsSrv.Shutdown(context.Background()) }()
	}

	printStartupMessage(instanceDir, apiURL, metricsURL)

	exitCtx := handleExitSignal()
	group, groupCtx := errgroup.WithContext(exitCtx)
	group.Go(func() error {
		n.HouseKeeping(groupCtx)
		return nil
	})
	return group.Wait()
}

func startMetricsServer(ctx *cli.Context) (*http.Server, string) {
	addr := ctx.String(metricsAddrFlag.Name)
	srv := &http.Server{Addr: addr, Handler: metrics.HTTPHandler()}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	return srv, "http://" + addr + "/metrics"
}

func printStartupMessage(instanceDir, apiURL, metricsURL string) {
	fmt.Printf(`Starting %v
    Version     %v
    Instance    %v
    API portal  %v
`, "cstake", fullVersion(), instanceDir, apiURL)
	if metricsURL != "" {
		fmt.Printf("    Metrics     %v\n", metricsURL)
	}
}
