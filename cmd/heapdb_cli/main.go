// heapdb_cli is an interactive shell over heap files: create, insert,
// scan with optional predicates, delete, backup and destroy, with
// structured logging and optional Prometheus metrics.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JaimeZepeda08/CS564-Stage4/config"
	"github.com/JaimeZepeda08/CS564-Stage4/core/heapfile"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/bufferpool"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/heappage"
	"github.com/JaimeZepeda08/CS564-Stage4/pkg/logger"
	"github.com/JaimeZepeda08/CS564-Stage4/pkg/telemetry"
)

const helpText = `Commands:
  create <file>                         create a heap file
  destroy <file>                        remove a heap file
  use <file>                            select the file later commands act on
  insert <text>                         append a record
  insertint <n> <text>                  append a record with a little-endian
                                        int32 prefix followed by text
  scan                                  list all records
  scanint <n> <op>                      list records whose int32 prefix
                                        compares to n (op: < <= = >= > !=)
  get <page> <slot>                     fetch one record by identifier
  delete <page> <slot>                  delete one record by identifier
  count                                 show the live record count
  backup <dst> [bytes_per_sec]          throttled copy of the current file
  help                                  this text
  quit                                  exit`

type shell struct {
	cfg     config.Config
	log     *zap.Logger
	bm      *bufferpool.BufferPoolManager
	tel     *telemetry.Telemetry
	current string // path of the selected heap file
}

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.With(zap.String("session_id", uuid.NewString()))

	tel, telShutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer telShutdown(context.Background())

	var poolMetrics *bufferpool.Metrics
	if cfg.Telemetry.Enabled {
		if poolMetrics, err = bufferpool.NewMetrics(tel.Meter); err != nil {
			log.Fatal("metric registration failed", zap.Error(err))
		}
	}
	bm := bufferpool.NewBufferPoolManager(cfg.Storage.BufferPoolSize, cfg.Storage.PageSize, log, poolMetrics)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatal("creating data dir failed", zap.Error(err))
	}

	sh := &shell{cfg: cfg, log: log, bm: bm, tel: tel}
	if err := sh.run(); err != nil {
		log.Fatal("shell terminated", zap.Error(err))
	}
}

func (sh *shell) run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "heapdb> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".heapdb_history"),
		InterruptPrompt: "^C",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		sh.dispatch(cmd, args)
	}
}

func (sh *shell) dispatch(cmd string, args []string) {
	ctx, span := sh.tel.Tracer.Start(context.Background(), "cli."+cmd)
	defer span.End()

	var err error
	switch cmd {
	case "help":
		fmt.Println(helpText)
	case "create":
		err = sh.withFileArg(args, func(path string) error {
			return heapfile.Create(sh.bm, path, sh.log)
		})
	case "destroy":
		err = sh.withFileArg(args, func(path string) error {
			if path == sh.current {
				sh.current = ""
			}
			return heapfile.Destroy(path)
		})
	case "use":
		err = sh.withFileArg(args, func(path string) error {
			sh.current = path
			return nil
		})
	case "insert":
		err = sh.insert(args, false)
	case "insertint":
		err = sh.insert(args, true)
	case "scan":
		err = sh.scan(nil, 0)
	case "scanint":
		err = sh.scanInt(args)
	case "get":
		err = sh.get(args)
	case "delete":
		err = sh.delete(args)
	case "count":
		err = sh.count()
	case "backup":
		err = sh.backup(ctx, args)
	default:
		fmt.Printf("unknown command %q, try help\n", cmd)
	}
	if err != nil {
		fmt.Println("error:", err)
	}
}

func (sh *shell) withFileArg(args []string, fn func(path string) error) error {
	if len(args) != 1 {
		return errors.New("expected exactly one file name")
	}
	return fn(filepath.Join(sh.cfg.Storage.DataDir, args[0]))
}

func (sh *shell) needFile() (string, error) {
	if sh.current == "" {
		return "", errors.New("no file selected, run: use <file>")
	}
	return sh.current, nil
}

func (sh *shell) insert(args []string, intPrefix bool) error {
	path, err := sh.needFile()
	if err != nil {
		return err
	}
	var rec []byte
	if intPrefix {
		if len(args) < 2 {
			return errors.New("usage: insertint <n> <text>")
		}
		n, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("bad integer %q: %w", args[0], err)
		}
		rec = binary.LittleEndian.AppendUint32(nil, uint32(int32(n)))
		rec = append(rec, strings.Join(args[1:], " ")...)
	} else {
		if len(args) == 0 {
			return errors.New("usage: insert <text>")
		}
		rec = []byte(strings.Join(args, " "))
	}

	ins, err := heapfile.OpenInsert(sh.bm, path, sh.log)
	if err != nil {
		return err
	}
	defer ins.Close()
	rid, err := ins.InsertRecord(rec)
	if err != nil {
		return err
	}
	fmt.Println("inserted at", rid)
	return nil
}

func (sh *shell) scan(filter []byte, op heapfile.Operator) error {
	path, err := sh.needFile()
	if err != nil {
		return err
	}
	scan, err := heapfile.OpenScan(sh.bm, path, sh.log)
	if err != nil {
		return err
	}
	defer scan.Close()
	if err := scan.StartScan(0, heapfile.IntAttrSize, heapfile.AttrInteger, filter, op); err != nil {
		return err
	}

	n := 0
	for {
		rid, err := scan.Next()
		if errors.Is(err, heapfile.ErrEndOfFile) {
			break
		}
		if err != nil {
			return err
		}
		rec, err := scan.CurrentRecord()
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", rid, printable(rec))
		n++
	}
	fmt.Printf("%d record(s)\n", n)
	return nil
}

func (sh *shell) scanInt(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: scanint <n> <op>")
	}
	n, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad integer %q: %w", args[0], err)
	}
	op, err := parseOperator(args[1])
	if err != nil {
		return err
	}
	filter := binary.LittleEndian.AppendUint32(nil, uint32(int32(n)))
	return sh.scan(filter, op)
}

func (sh *shell) get(args []string) error {
	path, err := sh.needFile()
	if err != nil {
		return err
	}
	rid, err := parseRID(args)
	if err != nil {
		return err
	}
	hf, err := heapfile.Open(sh.bm, path, sh.log)
	if err != nil {
		return err
	}
	defer hf.Close()
	rec, err := hf.GetRecord(rid)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", rid, printable(rec))
	return nil
}

func (sh *shell) delete(args []string) error {
	path, err := sh.needFile()
	if err != nil {
		return err
	}
	target, err := parseRID(args)
	if err != nil {
		return err
	}
	scan, err := heapfile.OpenScan(sh.bm, path, sh.log)
	if err != nil {
		return err
	}
	defer scan.Close()
	for {
		rid, err := scan.Next()
		if errors.Is(err, heapfile.ErrEndOfFile) {
			return fmt.Errorf("record %s not found", target)
		}
		if err != nil {
			return err
		}
		if rid == target {
			if err := scan.DeleteCurrent(); err != nil {
				return err
			}
			fmt.Println("deleted", target)
			return nil
		}
	}
}

func (sh *shell) count() error {
	path, err := sh.needFile()
	if err != nil {
		return err
	}
	hf, err := heapfile.Open(sh.bm, path, sh.log)
	if err != nil {
		return err
	}
	defer hf.Close()
	fmt.Println(hf.RecordCount())
	return nil
}

func (sh *shell) backup(ctx context.Context, args []string) error {
	path, err := sh.needFile()
	if err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: backup <dst> [bytes_per_sec]")
	}
	var rateLimit int64
	if len(args) == 2 {
		if rateLimit, err = strconv.ParseInt(args[1], 10, 64); err != nil {
			return fmt.Errorf("bad rate %q: %w", args[1], err)
		}
	}
	dst := filepath.Join(sh.cfg.Storage.DataDir, args[0])
	if err := disk.Backup(ctx, path, dst, rateLimit); err != nil {
		return err
	}
	fmt.Println("backed up to", dst)
	return nil
}

func parseRID(args []string) (heappage.RID, error) {
	if len(args) != 2 {
		return heappage.RID{}, errors.New("expected <page> <slot>")
	}
	page, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return heappage.RID{}, fmt.Errorf("bad page %q: %w", args[0], err)
	}
	slot, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return heappage.RID{}, fmt.Errorf("bad slot %q: %w", args[1], err)
	}
	return heappage.RID{PageNo: int32(page), SlotNo: int32(slot)}, nil
}

func parseOperator(s string) (heapfile.Operator, error) {
	switch s {
	case "<":
		return heapfile.OpLT, nil
	case "<=":
		return heapfile.OpLTE, nil
	case "=", "==":
		return heapfile.OpEQ, nil
	case ">=":
		return heapfile.OpGTE, nil
	case ">":
		return heapfile.OpGT, nil
	case "!=":
		return heapfile.OpNE, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

func printable(rec []byte) string {
	out := make([]rune, 0, len(rec))
	for _, b := range rec {
		if b >= 0x20 && b < 0x7f {
			out = append(out, rune(b))
		} else {
			out = append(out, '.')
		}
	}
	return string(out)
}
