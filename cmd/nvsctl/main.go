// Package main provides nvsctl, a host-side tool for inspecting and
// editing flash image files that hold an nvs storage region.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/sectorfs/nvs"
	"github.com/sectorfs/nvs/device/file"
)

const usage = `Usage: nvsctl [flags] <command> [args]

Commands:
  format              create a fresh erased image
  set <id> <value>    store value under id
  get <id>            print the latest value of id
  hist <id> <cnt>     print the cnt-th most recent version of id
  del <id>            delete id
  ls                  list live ids
  free                print free space in bytes
  dump                print every live id with its value
  shell               interactive session

Flags:
`

func main() {
	flags := flag.NewFlagSet("nvsctl", flag.ContinueOnError)
	image := flags.String("image", "nvs.img", "path to the flash image")
	configPath := flags.String("config", "", "path to a HuJSON geometry file")
	sectorSize := flags.Uint16("sector-size", 0, "override sector size in bytes")
	sectorCount := flags.Uint16("sector-count", 0, "override sector count")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if *sectorSize != 0 {
		cfg.SectorSize = *sectorSize
	}
	if *sectorCount != 0 {
		cfg.SectorCount = *sectorCount
	}

	if args[0] == "format" {
		if err := file.Create(*image, cfg.ImageSize(), cfg.Params()); err != nil {
			fatal(err)
		}
		fmt.Printf("formatted %s: %d sectors of %d bytes\n", *image, cfg.SectorCount, cfg.SectorSize)
		return
	}

	dev, err := file.Open(*image, cfg.Params())
	if err != nil {
		fatal(err)
	}
	defer dev.Close()

	opts := []nvs.Option{nvs.WithOffset(cfg.Offset)}
	if cfg.CacheSlots > 0 {
		opts = append(opts, nvs.WithLookupCache(cfg.CacheSlots))
	}
	fs, err := nvs.New(dev, cfg.Params(), cfg.SectorSize, cfg.SectorCount, opts...)
	if err != nil {
		fatal(err)
	}

	if args[0] == "shell" {
		if err := runShell(fs); err != nil {
			fatal(err)
		}
		return
	}

	if err := runCommand(fs, args, os.Stdout); err != nil {
		fatal(err)
	}
}

// runCommand executes one non-interactive command; the shell reuses it
// line by line.
func runCommand(fs *nvs.FS, args []string, out *os.File) error {
	switch args[0] {
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: set <id> <value>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		n, err := fs.Write(id, []byte(args[2]))
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(out, "unchanged")
		} else {
			fmt.Fprintf(out, "wrote %d bytes\n", n)
		}
		return nil

	case "get", "hist":
		if args[0] == "get" && len(args) != 2 || args[0] == "hist" && len(args) != 3 {
			return fmt.Errorf("usage: %s <id> [cnt]", args[0])
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		var cnt uint16
		if args[0] == "hist" {
			c, err := strconv.ParseUint(args[2], 10, 16)
			if err != nil {
				return fmt.Errorf("bad history count %q: %w", args[2], err)
			}
			cnt = uint16(c)
		}
		buf := make([]byte, fs.MaxWriteSize())
		n, err := fs.ReadHist(id, buf, cnt)
		if err != nil {
			return err
		}
		printValue(out, buf[:n])
		return nil

	case "del":
		if len(args) != 2 {
			return fmt.Errorf("usage: del <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return fs.Delete(id)

	case "ls":
		ids, err := fs.IDs()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil

	case "free":
		n, err := fs.FreeSpace()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
		return nil

	case "dump":
		ids, err := fs.IDs()
		if err != nil {
			return err
		}
		buf := make([]byte, fs.MaxWriteSize())
		for _, id := range ids {
			n, err := fs.Read(id, buf)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%5d  ", id)
			printValue(out, buf[:n])
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func parseID(s string) (uint16, error) {
	id, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad id %q: %w", s, err)
	}
	return uint16(id), nil
}

// printValue shows printable values as text and everything else as a
// hex dump.
func printValue(out *os.File, v []byte) {
	for _, b := range v {
		if b < 0x20 || b > 0x7E {
			fmt.Fprintf(out, "%s", hex.Dump(v))
			return
		}
	}
	fmt.Fprintln(out, string(v))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "nvsctl:", err)
	os.Exit(1)
}
