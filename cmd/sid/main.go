package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/samber/lo"
	"github.com/smasher164/sid/fsx"
	"github.com/smasher164/sid/internal/logio"
	"github.com/smasher164/sid/lexer"
	"github.com/smasher164/sid/value"
	"github.com/smasher164/sid/vm"
)

const usage = `sid runs stack programs.

Usage:
  sid [options] [PATH...]
  sid -h | --help

Arguments:
  PATH  A source file, or a directory whose .sid files run in lexical order.
        Without paths, source is read from stdin; a terminal gets a prompt.

Options:
  -t, --trace            Log every executed item.
  -p, --policy=POLICY    Sub-stack executor: sequential, concurrent or shuffled [default: sequential].
  --seed=SEED            Seed for the shuffled policy [default: 1].
  -d, --dump             Dump the schedule of every sub-stack before running it.
  --timeout=DURATION     Stop after this long, e.g. 10s.
  -h, --help             Display this help.
`

type config struct {
	paths   []string
	trace   bool
	policy  vm.Policy
	dump    bool
	timeout time.Duration
}

func parseArgs(argv []string) (config, error) {
	var cfg config
	opts, err := docopt.ParseArgs(usage, argv, "")
	if err != nil {
		return cfg, err
	}
	cfg.paths, _ = opts["PATH"].([]string)
	cfg.trace, _ = opts.Bool("--trace")
	cfg.dump, _ = opts.Bool("--dump")
	seedText, _ := opts.String("--seed")
	seed, err := strconv.ParseInt(seedText, 10, 64)
	if err != nil {
		return cfg, fmt.Errorf("bad --seed: %w", err)
	}
	name, _ := opts.String("--policy")
	if cfg.policy, err = vm.ParsePolicy(name, seed); err != nil {
		return cfg, err
	}
	if text, _ := opts.String("--timeout"); text != "" {
		if cfg.timeout, err = time.ParseDuration(text); err != nil {
			return cfg, fmt.Errorf("bad --timeout: %w", err)
		}
	}
	return cfg, nil
}

func main() {
	log := logio.NewLogger(os.Stderr)
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		log.ErrorIf(err)
		os.Exit(log.ExitCode())
	}

	ctx := context.Background()
	if cfg.timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	opts := []vm.Option{
		vm.WithOutput(os.Stdout),
		vm.WithPolicy(cfg.policy),
	}
	if cfg.trace {
		opts = append(opts, vm.WithLogf(log.Leveledf("TRACE")))
	}
	r := &runner{m: vm.New(opts...), log: log, cfg: cfg}

	switch {
	case len(cfg.paths) > 0:
		for _, path := range cfg.paths {
			if err := r.runPath(ctx, path); err != nil {
				log.ErrorIf(err)
				break
			}
		}
	case isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()):
		log.ErrorIf(r.repl(ctx))
	default:
		src, err := io.ReadAll(os.Stdin)
		if err == nil {
			err = r.eval(ctx, "<stdin>", string(src))
		}
		log.ErrorIf(err)
	}
	os.Exit(log.ExitCode())
}

type runner struct {
	m   *vm.Machine
	log *logio.Logger
	cfg config
}

func (r *runner) runPath(ctx context.Context, path string) error {
	dir, base := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	fsys := os.DirFS(dir)
	files, err := fsx.FilesWithExt(fsys, base, lexer.Ext)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%s: no %s files", path, lexer.Ext)
	}
	for _, name := range files {
		code, err := r.m.Load(fsys, name)
		if err != nil {
			return err
		}
		if err := r.run(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) eval(ctx context.Context, name, src string) error {
	code, err := r.m.Compile(name, src)
	if err != nil {
		return err
	}
	return r.run(ctx, code)
}

func (r *runner) run(ctx context.Context, code *value.Code) error {
	if r.cfg.dump {
		r.dump(code)
	}
	return r.m.Run(ctx, code)
}

// dump writes the schedule of every sub-stack reachable from code.
func (r *runner) dump(code *value.Code) {
	w := &logio.Writer{Logf: r.log.Leveledf("DUMP")}
	defer w.Close()
	seen := make(map[*value.Code]bool)
	var walk func(c *value.Code)
	walkValue := func(v value.Value) {
		switch v := v.(type) {
		case value.SubStack:
			walk(v.Code)
		case value.Script:
			walk(v.Code)
		case *value.Function:
			walk(v.Code())
		}
	}
	walk = func(c *value.Code) {
		if seen[c] {
			return
		}
		seen[c] = true
		if c.Kind == value.SubStackBlock {
			if g, err := r.m.Graph(c); err == nil {
				fmt.Fprintf(w, "%s\n%s\n", c.Source, g.Dump())
			}
		}
		for _, it := range c.Items {
			switch it := it.(type) {
			case value.Push:
				walkValue(it.Value)
			case value.Call:
				walkValue(it.Binding.Value)
			case value.Exec:
				walk(it.Code)
			case value.Build:
				walk(it.Code)
			case value.MakeList:
				walk(it.Elements)
			case value.MakeSet:
				walk(it.Elements)
			case value.MakeStruct:
				for _, f := range it.Fields {
					walk(f)
				}
			case value.Match:
				for _, mc := range it.Cases {
					walkValue(mc.Action)
				}
			}
		}
	}
	walk(code)
}

func (r *runner) repl(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetWordCompleter(r.complete)
	for n := 1; ; n++ {
		src, err := line.Prompt("sid> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case errors.Is(err, io.EOF):
			fmt.Println()
			return nil
		case err != nil:
			return err
		}
		if src == "" {
			continue
		}
		line.AppendHistory(src)
		if err := r.eval(ctx, fmt.Sprintf("<repl %d>", n), src); err != nil {
			r.log.ErrorIf(err)
			continue
		}
		fmt.Println(value.NewStack(r.m.Stack()...))
	}
}

// complete offers names bound in the session for the word under the
// cursor.
func (r *runner) complete(line string, pos int) (head string, completions []string, tail string) {
	head, tail = line[:pos], line[pos:]
	start := len(head)
	for start > 0 && head[start-1] != ' ' && head[start-1] != '(' && head[start-1] != '<' {
		start--
	}
	prefix := head[start:]
	for s := r.m.Scope(); s != nil; s = s.Parent {
		for name := range s.Symbols {
			if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
				completions = append(completions, name)
			}
		}
	}
	// an inner definition may shadow an outer one
	completions = lo.Uniq(completions)
	sort.Strings(completions)
	return head[:start], completions, tail
}
