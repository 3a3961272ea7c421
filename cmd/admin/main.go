package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelwfc.ai/internal/persistence/runlog"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "log":
			logCmd(os.Args[2:])
			return
		case "health":
			healthCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the attempt logs under the data dir, oldest first.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	files, err := runlog.Files(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, f := range files {
		fmt.Println(filepath.Base(f))
	}
}

func logCmd(args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kind := fs.String("kind", "", "only entries of this kind (attempt|run)")
	failed := fs.Bool("failed", false, "only failed attempts and runs")
	_ = fs.Parse(args)

	var paths []string
	if fs.NArg() > 0 {
		for _, a := range fs.Args() {
			if !strings.ContainsRune(a, os.PathSeparator) {
				if _, err := os.Stat(a); err != nil {
					a = filepath.Join(*dataDir, "runs", a)
				}
			}
			paths = append(paths, a)
		}
	} else {
		files, err := runlog.Files(*dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list:", err)
			os.Exit(1)
		}
		paths = files
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "no attempt logs found")
		os.Exit(2)
	}

	for _, p := range paths {
		entries, err := runlog.ReadAll(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(p), err)
			os.Exit(1)
		}
		for _, e := range filterEntries(entries, *kind, *failed) {
			printJSON(e)
		}
	}
}

func filterEntries(entries []runlog.Entry, kind string, failedOnly bool) []runlog.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		if failedOnly {
			switch {
			case e.Attempt != nil && e.Attempt.OK, e.Run != nil && e.Run.OK:
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
