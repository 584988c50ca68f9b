// Command precache-dir performs a BFS walk of a directory tree, reading
// every level's extents off a raw block device in physical order (§4.7,
// §6). If the device is omitted, it is guessed from /proc/mounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/diskwarm/precache/internal/config"
	"github.com/diskwarm/precache/internal/engine"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("precache-dir", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config file (yaml or json)")
	printConfig := fs.Bool("print-config", false, "print the effective configuration as JSON and exit")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve /metrics on this address")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "precache-dir: %v\n", err)
		return 1
	}
	if *debug {
		cfg.Debug = true
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	engine.InitLogger(cfg.Debug, false)

	if *printConfig {
		out, err := cfg.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "precache-dir: %v\n", err)
			return 1
		}
		fmt.Println(out)
		return 0
	}

	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: precache-dir <root-dir> [raw-device]")
		return 2
	}

	root := rest[0]
	var devicePath string
	if len(rest) >= 2 {
		devicePath = rest[1]
	} else {
		guessed, err := engine.GuessDevice(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "precache-dir: can't guess raw device: %v\n", err)
			return 1
		}
		devicePath = guessed
		fmt.Printf("Raw device guessed by examining /proc/mounts: %s\n", devicePath)
	}

	rawFd, err := unix.Open(devicePath, unix.O_RDONLY, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "precache-dir: %s: %s: %v\n", engine.ErrRawDeviceUnavailable, devicePath, err)
		return 1
	}
	defer unix.Close(rawFd)

	resolver, err := engine.NewResolver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "precache-dir: %v\n", err)
		return 1
	}
	if err := resolver.ForceRefresh(); err != nil {
		engine.GetLogger().Debugf("force_refresh failed: %v", err)
	}

	metrics := engine.NewPrecacheMetrics()
	resolver.SetMetrics(metrics)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := engine.StartMetricsServer(context.Background(), cfg.MetricsAddr); err != nil {
				engine.GetLogger().Errorf("metrics server: %v", err)
			}
		}()
	}

	walker := engine.NewDirectoryWalker(resolver)
	walker.SetMetrics(metrics)
	totalBytes, err := walker.Run(root, rawFd, func(ev engine.ProgressEvent) {
		fmt.Fprintf(os.Stderr, "\r%s: %d/%d", ev.Phase, ev.Current, ev.Total)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "precache-dir: %v\n", err)
		return 1
	}

	const oneMiB = 1024 * 1024
	fmt.Printf("total data read: %d MiB (%d B)\n", (totalBytes+oneMiB-1)/oneMiB, totalBytes)

	return 0
}
