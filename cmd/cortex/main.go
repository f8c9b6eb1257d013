// Package main provides the cortex command, a thin CLI over the file-backed
// memory store in pkg/memory. All argument parsing and user interaction
// lives here; the engine knows nothing about it.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/cortex/pkg/config"
	"github.com/entrhq/cortex/pkg/logging"
	"github.com/entrhq/cortex/pkg/memory"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, `cortex v%s - file-backed hierarchical memory store

Usage: cortex [flags] <command> [args]

Commands:
  write <slugPath>          write a memory (body from stdin or -f)
  read <slugPath>           print a memory file
  rm <slugPath>             remove a memory
  mv <src> <dst>            move a memory to a new slug path
  ls [pattern]              list memory slug paths, optionally glob-filtered
  index [categoryPath]      print a category's index
  describe <parent> <sub> [text]
                            set (or clear, with no text) a subcategory description
  mkdir <categoryPath>      create a category directory
  rmdir <categoryPath>      delete a category directory recursively
  reindex                   rebuild every index from the memory files

Flags:
`, version)
	flag.PrintDefaults()
}

func main() {
	rootFlag := flag.String("root", "", "store root directory (defaults to the configured store)")
	configFlag := flag.String("config", "", "config file path (defaults to ~/.cortex/config.json)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatal(err)
	}
	root := cfg.StoreRoot
	if *rootFlag != "" {
		root = *rootFlag
	}

	logger, lerr := logging.New("cli", cfg.LogDir)
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", lerr)
	}
	defer logger.Close()

	store, err := memory.Open(root)
	if err != nil {
		fatal(err)
	}

	logger.Infof("command=%s root=%s", args[0], store.Root())
	if err := run(store, logger, args[0], args[1:]); err != nil {
		logger.Errorf("command=%s failed: %v", args[0], err)
		fatal(err)
	}
}

func run(store *memory.Store, logger *logging.Logger, command string, args []string) error {
	switch command {
	case "write":
		return cmdWrite(store, args)
	case "read":
		return cmdRead(store, args)
	case "rm":
		return expectArgs(args, 1, func() error { return store.RemoveMemory(args[0]) })
	case "mv":
		return expectArgs(args, 2, func() error { return store.MoveMemory(args[0], args[1]) })
	case "ls":
		return cmdList(store, args)
	case "index":
		return cmdIndex(store, args)
	case "describe":
		return cmdDescribe(store, args)
	case "mkdir":
		return expectArgs(args, 1, func() error { return store.EnsureCategory(args[0]) })
	case "rmdir":
		return expectArgs(args, 1, func() error { return store.DeleteCategory(args[0]) })
	case "reindex":
		logger.Infof("reindex started")
		return store.Reindex()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func expectArgs(args []string, n int, fn func() error) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return fn()
}

func cmdWrite(store *memory.Store, args []string) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	source := fs.String("source", "cli", "origin recorded in the memory's metadata")
	tags := fs.String("tags", "", "comma-separated tags")
	expires := fs.String("expires", "", "optional RFC 3339 expiry instant")
	file := fs.String("f", "", "read the body from this file instead of stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("write needs exactly one slug path")
	}
	slugPath := fs.Arg(0)

	body, err := readBody(*file)
	if err != nil {
		return err
	}

	mem := memory.NewMemory(body, *source, splitTags(*tags))
	if *expires != "" {
		t, err := time.Parse(time.RFC3339, *expires)
		if err != nil {
			return fmt.Errorf("invalid -expires value: %w", err)
		}
		mem.Metadata.ExpiresAt = &t
	}

	// Overwrites keep the original creation instant.
	if existing, err := store.ReadMemory(slugPath); err != nil {
		return err
	} else if existing != nil {
		prior, err := memory.Parse(existing)
		if err != nil {
			return err
		}
		mem.Metadata.CreatedAt = prior.Metadata.CreatedAt
	}

	content, err := memory.Serialize(mem)
	if err != nil {
		return err
	}
	return store.WriteMemory(slugPath, content)
}

func cmdRead(store *memory.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("read needs exactly one slug path")
	}
	content, err := store.ReadMemory(args[0])
	if err != nil {
		return err
	}
	if content == nil {
		return fmt.Errorf("no memory at %q", args[0])
	}
	_, err = os.Stdout.Write(content)
	return err
}

func cmdList(store *memory.Store, args []string) error {
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}
	slugs, err := store.ListMemories(pattern)
	if err != nil {
		return err
	}
	for _, slug := range slugs {
		fmt.Println(slug)
	}
	return nil
}

func cmdIndex(store *memory.Store, args []string) error {
	categoryPath := ""
	if len(args) > 0 {
		categoryPath = args[0]
	}
	idx, err := store.ReadIndex(categoryPath)
	if err != nil {
		return err
	}
	if idx == nil {
		return fmt.Errorf("no index for category %q", categoryPath)
	}
	out, err := yaml.Marshal(idx)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func cmdDescribe(store *memory.Store, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("describe needs a parent path, a subcategory path and optional text")
	}
	description := ""
	if len(args) == 3 {
		description = args[2]
	}
	return store.SetSubcategoryDescription(args[0], args[1], description)
}

func readBody(file string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read body file: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read body from stdin: %w", err)
	}
	return string(b), nil
}

func splitTags(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "cortex: %v\n", err)
	os.Exit(1)
}
