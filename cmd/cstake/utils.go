// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/elastic/gosigar"
	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/cstake/cstake/kv"
	"github.com/cstake/cstake/log"
	"github.com/cstake/cstake/logdb"
	"github.com/cstake/cstake/node"
)

func fatal(args ...interface{}) {
	var w io.Writer
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		} else {
			w = io.MultiWriter(os.Stdout, os.Stderr)
		}
	}
	fmt.Fprint(w, "Fatal: ")
	fmt.Fprintln(w, args...)
	os.Exit(1)
}

func defaultDataDir() string {
	// Try to place the data folder in the user's home dir
	if home, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "darwin":
			return filepath.Join(home, "Library", "Application Support", "org.cstake.cstake")
		case "windows":
			return filepath.Join(home, "AppData", "Roaming", "cstake")
		default:
			return filepath.Join(home, ".org.cstake.cstake")
		}
	}
	return ""
}

func initLogger(ctx *cli.Context) {
	var lvl slog.LevelVar
	lvl.Set(log.FromLegacyLevel(int(ctx.Uint64(verbosityFlag.Name))))

	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) {
		handler = log.JSONHandlerWithLevel(os.Stderr, &lvl)
	} else {
		useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, &lvl, useColor)
	}
	log.SetDefault(log.NewLogger(handler))
}

func makeDataDir(ctx *cli.Context) string {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		fatal(fmt.Sprintf("unable to infer default data dir, use -%s to specify one", dataDirFlag.Name))
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		fatal(fmt.Sprintf("create data dir [%v]: %v", dataDir, err))
	}
	checkDiskSpace(dataDir)
	return dataDir
}

// checkDiskSpace warns when the data dir volume is nearly full. The node
// keeps running; sqlite and leveldb fail loudly on their own when it is.
func checkDiskSpace(dataDir string) {
	var usage gosigar.FileSystemUsage
	if err := usage.Get(dataDir); err != nil {
		logger.Debug("failed to inspect data dir filesystem", "err", err)
		return
	}
	const minFree = 128 * 1024 * 1024
	if usage.Avail < minFree {
		logger.Warn("data dir volume is low on space", "dir", dataDir, "availBytes", usage.Avail)
	}
}

// loadMasterKey reads the 32-byte hex master key, generating one on first
// start.
func loadMasterKey(dataDir string) (key [32]byte, err error) {
	path := filepath.Join(dataDir, "master.key")
	data, err := os.ReadFile(path)
	if err == nil {
		raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(raw) != len(key) {
			return key, fmt.Errorf("malformed master key file [%v]", path)
		}
		copy(key[:], raw)
		return key, nil
	}
	if !os.IsNotExist(err) {
		return key, err
	}

	if _, err := rand.Read(key[:]); err != nil {
		return key, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key[:])+"\n"), 0o600); err != nil {
		return key, err
	}
	logger.Info("generated new master key", "path", path)
	return key, nil
}

func openMainDB(ctx *cli.Context, dataDir string) kv.GetPutCloser {
	dir := filepath.Join(dataDir, "main.db")
	db, err := kv.New(dir, ctx.Int(cacheFlag.Name))
	if err != nil {
		fatal(fmt.Sprintf("open main database [%v]: %v", dir, err))
	}
	return db
}

func openLogDB(dataDir string) *logdb.LogDB {
	path := filepath.Join(dataDir, "logs.db")
	db, err := logdb.New(path)
	if err != nil {
		fatal(fmt.Sprintf("open log database [%v]: %v", path, err))
	}
	return db
}

func loadGenesis(ctx *cli.Context) *node.Genesis {
	path := ctx.String(genesisFlag.Name)
	if path == "" {
		return nil
	}
	gen, err := node.LoadGenesis(path)
	if err != nil {
		fatal(err)
	}
	return gen
}

func startAPIServer(ctx *cli.Context, handler http.HandlerFunc) (*http.Server, string) {
	addr := ctx.String(apiAddrFlag.Name)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fatal(fmt.Sprintf("listen API addr [%v]: %v", addr, err))
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			logger.Error("API server stopped", "err", err)
		}
	}()
	return srv, "http://" + listener.Addr().String() + "/"
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}
