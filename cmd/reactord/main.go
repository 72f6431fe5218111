/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command reactord starts the readiness-driven HTTP server: a single
// epoll reactor dispatching parsing and static-file/login handling onto a
// worker pool, backed by a fixed pool of MySQL handles.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/reactord/dbpool"
	"github.com/nabbar/reactord/ioutils/fileDescriptor"
	"github.com/nabbar/reactord/logger"
	"github.com/nabbar/reactord/reactor"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "reactord",
		Short: "Single-reactor HTTP/1.1 server with a DB-backed login endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 8080, "TCP port to listen on")
	flags.Int("trigger-mode", 3, "bit 0: connections edge-triggered, bit 1: listen socket edge-triggered")
	flags.Int("timeout-ms", 60000, "idle connection timeout in milliseconds")
	flags.Bool("linger", false, "close sockets with SO_LINGER(0) instead of a graceful FIN")
	flags.String("resources-dir", "./resources", "static file root")
	flags.Int("worker-count", 8, "worker pool goroutine count")
	flags.Int("max-connections", reactor.DefaultMaxConnections, "maximum concurrent connections")

	flags.String("db-host", "127.0.0.1", "MySQL host")
	flags.Int("db-port", 3306, "MySQL port")
	flags.String("db-user", "root", "MySQL user")
	flags.String("db-password", "", "MySQL password")
	flags.String("db-name", "webserver", "MySQL database name")
	flags.Int("conn-pool-size", 8, "number of pre-opened MySQL handles")

	flags.String("log-level", "info", "log level: debug, info, warning, error")
	flags.String("log-file", "", "additionally append logs to this file")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("REACTORD")
	v.AutomaticEnv()

	return cmd
}

func run(v *viper.Viper) error {
	lvl := logger.GetLevelString(v.GetString("log-level"))
	log := logger.New(lvl)
	getLog := func() logger.Logger { return log }
	defer log.Close()

	if lf := v.GetString("log-file"); lf != "" {
		opt := &logger.Options{
			LogFile: logger.OptionsFiles{{
				Filepath:   lf,
				Create:     true,
				CreatePath: true,
			}},
		}
		if oerr := log.SetOptions(opt); oerr != nil {
			log.Warning("reactord: could not enable log file '%s': %v", lf, oerr)
		}
	}

	maxConn := v.GetInt("max-connections")
	if cur, max, ferr := fileDescriptor.SystemFileDescriptor(maxConn); ferr != nil {
		log.Warning("reactord: could not raise file descriptor limit to %d: %v", maxConn, ferr)
	} else {
		log.Info("reactord: file descriptor limit %d (hard max %d)", cur, max)
	}

	dbCfg := dbpool.Config{
		Host:     v.GetString("db-host"),
		Port:     v.GetInt("db-port"),
		User:     v.GetString("db-user"),
		Password: v.GetString("db-password"),
		DBName:   v.GetString("db-name"),
		PoolSize: v.GetInt("conn-pool-size"),
	}

	pool, err := dbpool.New(dbCfg, getLog)
	if err != nil {
		return fmt.Errorf("opening DB handle pool: %w", err)
	}
	defer pool.Close()

	trig := v.GetInt("trigger-mode")
	cfg := reactor.Config{
		Port:           v.GetInt("port"),
		ConnTrigger:    reactor.TriggerMode(trig & 0x1),
		ListenTrigger:  reactor.TriggerMode((trig >> 1) & 0x1),
		IdleTimeout:    time.Duration(v.GetInt("timeout-ms")) * time.Millisecond,
		Linger:         v.GetBool("linger"),
		ResourcesDir:   v.GetString("resources-dir"),
		WorkerCount:    v.GetInt("worker-count"),
		MaxConnections: v.GetInt("max-connections"),
	}

	re, rerr := reactor.New(cfg, pool, getLog)
	if rerr != nil {
		return fmt.Errorf("building reactor: %w", rerr)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("reactord: shutdown signal received")
		re.Shutdown()
	}()

	if rerr = re.Run(); rerr != nil {
		return fmt.Errorf("reactor run: %w", rerr)
	}

	return nil
}
