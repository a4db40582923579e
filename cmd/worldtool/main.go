// worldtool inspects worldcore's binary files offline.
//
// Usage:
//
//	go run ./cmd/worldtool <command> [flags] [files...]
//
// Commands: listrent, archive, mailscan, pfile
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/worldcore/internal/config"
	"github.com/l1jgo/worldcore/internal/mail"
	"github.com/l1jgo/worldcore/internal/persist"
)

// ---------------------------------------------------------------------------
// YAML output structs
// ---------------------------------------------------------------------------

type rentYAML struct {
	File       string     `yaml:"file"`
	Code       string     `yaml:"code"`
	Saved      string     `yaml:"saved"`
	CostPerDay int32      `yaml:"cost_per_day"`
	Gold       int32      `yaml:"gold"`
	Bank       int32      `yaml:"bank"`
	Items      []itemYAML `yaml:"items"`
}

type itemYAML struct {
	Vnum     int32 `yaml:"vnum"`
	Location int16 `yaml:"location"`
	Timer    int32 `yaml:"timer,omitempty"`
}

type mailYAML struct {
	File       string  `yaml:"file"`
	Bytes      int64   `yaml:"bytes"`
	Messages   int     `yaml:"messages"`
	Free       int     `yaml:"free_blocks"`
	Corrupt    int     `yaml:"corrupt_blocks"`
	Disabled   bool    `yaml:"disabled"`
	Recipients []int64 `yaml:"recipients"`
}

type playerYAML struct {
	Pos     int    `yaml:"pos"`
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Level   byte   `yaml:"level"`
	Deleted bool   `yaml:"deleted,omitempty"`
}

func printYAML(v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func rentOutput(s *persist.Summary) rentYAML {
	out := rentYAML{
		File:       s.Path,
		Code:       persist.CodeName(s.Header.Code),
		Saved:      time.Unix(s.Header.Time, 0).UTC().Format(time.RFC3339),
		CostPerDay: s.Header.CostPerDay,
		Gold:       s.Header.Gold,
		Bank:       s.Header.Bank,
	}
	for _, it := range s.Items {
		out.Items = append(out.Items, itemYAML{Vnum: it.Vnum, Location: it.Location, Timer: it.Timer})
	}
	return out
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// listRent prints rent files. Directories are walked for *.objs files.
func listRent(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		args = []string{cfg.Rent.Dir}
	}
	var paths []string
	for _, a := range args {
		st, err := os.Stat(a)
		if err != nil {
			return err
		}
		if !st.IsDir() {
			paths = append(paths, a)
			continue
		}
		err = filepath.WalkDir(a, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".objs" {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	sort.Strings(paths)

	var out []rentYAML
	for _, p := range paths {
		s, err := persist.ListRent(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", p, err)
			continue
		}
		out = append(out, rentOutput(s))
	}
	return printYAML(out)
}

// archive prints rent files from the zstd archive of expired files.
func archive(_ *config.Config, args []string) error {
	var out []rentYAML
	for _, p := range args {
		raw, err := persist.ReadArchive(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		h, items, err := persist.DecodeRentFile(raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", p, err)
		}
		out = append(out, rentOutput(&persist.Summary{Path: p, Header: h, Items: items}))
	}
	return printYAML(out)
}

func mailScan(cfg *config.Config, args []string) error {
	path := cfg.Mail.File
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	store, err := mail.Open(path, cfg.Mail.MaxSize, zap.NewNop())
	if err != nil && !store.Disabled() {
		return err
	}
	stats, _ := store.Scan()
	return printYAML(mailYAML{
		File:       path,
		Bytes:      stats.Bytes,
		Messages:   stats.Messages,
		Free:       stats.Free,
		Corrupt:    stats.Corrupt,
		Disabled:   store.Disabled(),
		Recipients: store.Recipients(),
	})
}

func playerIndex(cfg *config.Config, args []string) error {
	path := cfg.Player.File
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	pf, err := persist.OpenPlayerFile(path, zap.NewNop())
	if err != nil {
		return err
	}
	var out []playerYAML
	for _, e := range pf.Entries() {
		out = append(out, playerYAML{Pos: e.Pos, ID: e.ID, Name: e.Name, Level: e.Level, Deleted: e.Deleted})
	}
	return printYAML(out)
}

func printUsage() {
	fmt.Println("Usage: worldtool <command> [-config path] [files...]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  listrent   print rent files (default: the rent directory)")
	fmt.Println("  archive    print archived (.zst) rent files")
	fmt.Println("  mailscan   scan the mail file and print its statistics")
	fmt.Println("  pfile      print the player file index")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "config/worldcore.toml", "config file, read for default paths")
	_ = fs.Parse(os.Args[2:])

	cfg := config.Default()
	if _, err := os.Stat(*cfgPath); err == nil {
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	commands := map[string]func(*config.Config, []string) error{
		"listrent": listRent,
		"archive":  archive,
		"mailscan": mailScan,
		"pfile":    playerIndex,
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err := fn(cfg, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
