// Command precache enumerates the extents of a set of files, sorts them
// by physical position, and reads them back in that order to prime the
// kernel page cache (§6). Paths are taken from argv, or one per line on
// stdin when stdin is not a tty.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/diskwarm/precache/internal/config"
	"github.com/diskwarm/precache/internal/engine"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("precache", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config file (yaml or json)")
	printConfig := fs.Bool("print-config", false, "print the effective configuration as JSON and exit")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "precache: %v\n", err)
		return 1
	}
	if *debug {
		cfg.Debug = true
	}

	engine.InitLogger(cfg.Debug, false)

	if *printConfig {
		out, err := cfg.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "precache: %v\n", err)
			return 1
		}
		fmt.Println(out)
		return 0
	}

	paths := fs.Args()
	if len(paths) == 0 {
		stat, statErr := os.Stdin.Stat()
		if statErr == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					paths = append(paths, line)
				}
			}
		}
	}

	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: precache <file>... (or pipe paths on stdin)")
		return 2
	}

	eng, err := engine.New(engine.EngineConfig{
		PrecacheLimit: cfg.PrecacheLimit,
		PrecacheSync:  cfg.PrecacheSync,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "precache: %v\n", err)
		return 1
	}
	defer eng.Close()

	if err := eng.Resolver.ForceRefresh(); err != nil {
		engine.GetLogger().Debugf("force_refresh failed: %v", err)
	}

	queued, bytesRead := eng.Driver.Run(paths, func(ev engine.ProgressEvent) {
		fmt.Fprintf(os.Stderr, "\r%s: %d/%d", ev.Phase, ev.Current, ev.Total)
	})
	fmt.Fprintln(os.Stderr)
	fmt.Printf("queued %d files, read %d bytes\n", queued, bytesRead)

	return 0
}
