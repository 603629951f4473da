package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/01011010/notesum-hybrid/internal/client/scheduler"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	hasOpenPage() bool

	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	Passwd(ctx context.Context) error
	Token(ctx context.Context, token string) error

	List(ctx context.Context) error
	New(ctx context.Context, name string) error
	Open(ctx context.Context, ref string) error
	Show(ctx context.Context) error
	Append(ctx context.Context, text string) error
	Set(ctx context.Context, line int, text string) error
	Remove(ctx context.Context, line int) error
	Edit(ctx context.Context) error
	Rename(ctx context.Context, name string) error
	Move(ctx context.Context, refs []string) error
	Delete(ctx context.Context, ref string) error
	Vars(ctx context.Context) error
	Events(ctx context.Context) error

	Sync(ctx context.Context) error
	SyncAll(ctx context.Context, opts scheduler.SyncAllOptions) error
	Abort(ctx context.Context) error
	Status(ctx context.Context) error
	Errors(ctx context.Context) error
	Export(ctx context.Context, path string) error
}

const helpText = `Pages:   list | new <name> | open <id|name> | show | rename <name> | move <id|name>... | delete <id|name>
Lines:   append <text> | set <n> <text> | rm <n> | edit | vars
Events:  events
Sync:    sync | syncall [-force] [-local] | abort | status | errors | export [file]
Vault:   unlock | lock | passwd | token <jwt>
         exit | quit`

// rest returns the line after the command word with inner spacing intact.
func rest(line, cmd string) string {
	line = strings.TrimLeft(line, " \t")
	return strings.TrimSpace(strings.TrimPrefix(line, cmd))
}

func lineArg(arg string) (int, string, bool) {
	num, text, _ := strings.Cut(arg, " ")
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, "", false
	}
	return n, text, true
}

// runREPL reads commands from reader and dispatches them to a until EOF,
// "exit" or "quit".
//
// Lines typed while a page is open but not starting with a known command
// are not appended implicitly; use "append". Errors returned by handlers
// are ignored here since handlers report their own failures.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("notesum %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "unlock":
			_ = a.Unlock(ctx)

		case "lock":
			_ = a.Lock(ctx)

		case "passwd":
			_ = a.Passwd(ctx)

		case "token":
			if len(args) != 1 {
				printlnFn("Usage: token <jwt>")
				continue
			}
			_ = a.Token(ctx, args[0])

		case "l", "list":
			_ = a.List(ctx)

		case "new":
			name := rest(line, cmd)
			if name == "" {
				printlnFn("Usage: new <name>")
				continue
			}
			_ = a.New(ctx, name)

		case "open":
			ref := rest(line, cmd)
			if ref == "" {
				printlnFn("Usage: open <id|name>")
				continue
			}
			_ = a.Open(ctx, ref)

		case "show", "append", "a", "set", "rm", "edit", "rename", "vars":
			if !a.hasOpenPage() {
				printlnFn("No page is open. Use: open <id|name>")
				continue
			}
			pageCommand(ctx, a, cmd, line)

		case "events":
			_ = a.Events(ctx)

		case "move":
			if len(args) == 0 {
				printlnFn("Usage: move <id|name>...")
				continue
			}
			_ = a.Move(ctx, args)

		case "delete":
			ref := rest(line, cmd)
			if ref == "" {
				printlnFn("Usage: delete <id|name>")
				continue
			}
			_ = a.Delete(ctx, ref)

		case "sync":
			_ = a.Sync(ctx)

		case "syncall":
			var opts scheduler.SyncAllOptions
			for _, arg := range args {
				switch arg {
				case "-force":
					opts.ForceAll = true
				case "-local":
					opts.LocalOnly = true
				}
			}
			_ = a.SyncAll(ctx, opts)

		case "abort":
			_ = a.Abort(ctx)

		case "status":
			_ = a.Status(ctx)

		case "errors":
			_ = a.Errors(ctx)

		case "export":
			_ = a.Export(ctx, rest(line, cmd))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}

func pageCommand(ctx context.Context, a execIface, cmd, line string) {
	arg := rest(line, cmd)
	switch cmd {
	case "show":
		_ = a.Show(ctx)

	case "append", "a":
		_ = a.Append(ctx, arg)

	case "set":
		n, text, ok := lineArg(arg)
		if !ok {
			printlnFn("Usage: set <n> <text>")
			return
		}
		_ = a.Set(ctx, n, text)

	case "rm":
		n, _, ok := lineArg(arg)
		if !ok {
			printlnFn("Usage: rm <n>")
			return
		}
		_ = a.Remove(ctx, n)

	case "edit":
		_ = a.Edit(ctx)

	case "rename":
		if arg == "" {
			printlnFn("Usage: rename <name>")
			return
		}
		_ = a.Rename(ctx, arg)

	case "vars":
		_ = a.Vars(ctx)
	}
}
