package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/sectorfs/nvs"
)

var shellCommands = []string{"set", "get", "hist", "del", "ls", "free", "dump", "help", "quit"}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nvsctl_history")
}

// runShell drives an interactive session against a mounted image.
func runShell(fs *nvs.FS) error {
	if err := fs.Mount(); err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range shellCommands {
			if strings.HasPrefix(c, prefix) {
				out = append(out, c)
			}
		}
		return out
	})

	if f, err := os.Open(historyFile()); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Println("nvsctl shell; type 'help' for commands")
loop:
	for {
		input, err := line.Prompt("nvs> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		args := strings.Fields(input)
		switch args[0] {
		case "quit", "exit":
			break loop
		case "help":
			fmt.Println("commands: set <id> <value>, get <id>, hist <id> <cnt>, del <id>, ls, free, dump, quit")
		default:
			if err := runCommand(fs, args, os.Stdout); err != nil {
				fmt.Println("error:", err)
			}
		}
	}

	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}
