// Command btreedb is a small interactive shell over a rowtable.Table: enter
// a key and fields to insert them, "!<key>" to remove, "? <key>" to search,
// "?<low>-<high>" to range search. It exists to exercise the tree and row
// table by hand, the same way the original B+Tree's own interactive main
// loop did.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/icza/backscanner"
	copydir "github.com/otiai10/copy"

	"bplustable/pkg/config"
	"bplustable/pkg/digest"
	"bplustable/pkg/rowtable"
)

func main() {
	dbFlag := flag.String("db", "data/table.tbl", "row table file")
	fieldsFlag := flag.String("fields", "", "comma-separated field lengths, required when creating a new table (e.g. \"20,40\")")
	blockSizeFlag := flag.Int("blocksize", config.DefaultBlockSize, "btree block size, used only when creating a new table")
	promptFlag := flag.Bool("c", true, "print a prompt before each command")
	flag.Parse()

	tbl, err := openOrCreateTable(*dbFlag, *fieldsFlag, *blockSizeFlag)
	if err != nil {
		log.Fatal(err)
	}

	logFile, err := os.OpenFile(config.LogFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()

	sessionID := uuid.New()

	setupCloseHandler(tbl)
	defer tbl.Close()

	fmt.Printf("opened %s (fields: %v)\n", tbl.GetFileName(), tbl.FieldLengths())

	prompt := config.GetPrompt(*promptFlag)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if prompt != "" {
			fmt.Print(prompt)
		}
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logLine(logFile, sessionID, line)

		if line == "quit" || line == "exit" {
			return
		}
		if err := dispatch(tbl, logFile.Name(), line); err != nil {
			fmt.Println(err)
		}
	}
}

func openOrCreateTable(path, fieldsSpec string, blockSize int) (*rowtable.Table, error) {
	if _, err := os.Stat(path); err == nil {
		return rowtable.Open(path)
	}
	if fieldsSpec == "" {
		return nil, fmt.Errorf("btreedb: %s does not exist; supply -fields to create it", path)
	}
	parts := strings.Split(fieldsSpec, ",")
	fieldLengths := make([]int32, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("btreedb: invalid field length %q: %w", p, err)
		}
		fieldLengths[i] = int32(n)
	}
	return rowtable.Create(path, fieldLengths, blockSize)
}

func dispatch(tbl *rowtable.Table, logPath, line string) error {
	switch {
	case strings.HasPrefix(line, "!"):
		return doRemove(tbl, line[1:])
	case strings.HasPrefix(line, "?"):
		return doSearch(tbl, line[1:])
	case strings.HasPrefix(line, "insert "):
		return doInsert(tbl, strings.TrimPrefix(line, "insert "))
	case strings.HasPrefix(line, "snapshot "):
		return doSnapshot(tbl, strings.TrimSpace(strings.TrimPrefix(line, "snapshot ")))
	case strings.HasPrefix(line, "history"):
		return doHistory(logPath, strings.TrimSpace(strings.TrimPrefix(line, "history")))
	case line == "checksum":
		return doChecksum(tbl)
	case line == "stats":
		return doStats(tbl)
	default:
		return doInsert(tbl, line)
	}
}

func doInsert(tbl *rowtable.Table, rest string) error {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return fmt.Errorf("insert: expected a key")
	}
	key, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("insert: invalid key %q: %w", fields[0], err)
	}
	ok, err := tbl.Insert(int32(key), fields[1:])
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("inserted %d\n", key)
	} else {
		fmt.Printf("key %d already present\n", key)
	}
	return nil
}

func doRemove(tbl *rowtable.Table, rest string) error {
	key, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return fmt.Errorf("remove: invalid key %q: %w", rest, err)
	}
	ok, err := tbl.Remove(int32(key))
	if err != nil {
		return err
	}
	fmt.Printf("remove result: %v\n", ok)
	return nil
}

func doSearch(tbl *rowtable.Table, rest string) error {
	rest = strings.TrimSpace(rest)
	if low, high, ok := parseRange(rest); ok {
		rows, err := tbl.RangeSearch(low, high)
		if err != nil {
			return err
		}
		for _, row := range rows {
			fmt.Printf("%5d) %s\n", row.Key, strings.Join(row.Fields, " "))
		}
		fmt.Printf("%d row(s)\n", len(rows))
		return nil
	}

	key, err := strconv.Atoi(rest)
	if err != nil {
		return fmt.Errorf("search: invalid key %q: %w", rest, err)
	}
	row, found, err := tbl.Search(int32(key))
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("not found")
		return nil
	}
	fmt.Printf("%5d) %s\n", row.Key, strings.Join(row.Fields, " "))
	return nil
}

// parseRange parses "low-high" into two keys. Returns ok=false if rest
// doesn't look like a range (so callers fall back to a single-key search).
func parseRange(rest string) (low, high int32, ok bool) {
	idx := strings.IndexByte(rest, '-')
	if idx <= 0 {
		return 0, 0, false
	}
	l, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(rest[idx+1:])
	if err != nil {
		return 0, 0, false
	}
	return int32(l), int32(h), true
}

func doSnapshot(tbl *rowtable.Table, dir string) error {
	if dir == "" {
		return fmt.Errorf("snapshot: expected a destination directory")
	}
	rowsPath := tbl.GetFileName()
	if err := copydir.Copy(rowsPath, dir+"/"+basename(rowsPath)); err != nil {
		return err
	}
	treePath := rowsPath + ".btree"
	if err := copydir.Copy(treePath, dir+"/"+basename(treePath)); err != nil {
		return err
	}
	fmt.Printf("snapshotted %s and %s into %s\n", rowsPath, treePath, dir)
	return nil
}

func basename(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func doHistory(logPath, arg string) error {
	n := 10
	if arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("history: invalid count %q: %w", arg, err)
		}
		n = parsed
	}
	f, err := os.Open(logPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	scanner := backscanner.New(f, int(info.Size()))
	lines := make([]string, 0, n)
	for len(lines) < n {
		line, _, err := scanner.LineBytes()
		if err != nil {
			break
		}
		lines = append(lines, string(line))
	}
	for i := len(lines) - 1; i >= 0; i-- {
		fmt.Println(lines[i])
	}
	return nil
}

func doChecksum(tbl *rowtable.Table) error {
	rowsHash, err := digest.RowTable(tbl)
	if err != nil {
		return err
	}
	treeHash, err := digest.Tree(tbl.Tree())
	if err != nil {
		return err
	}
	fmt.Printf("rows: %016x\ntree: %016x\n", rowsHash, treeHash)
	return nil
}

func doStats(tbl *rowtable.Table) error {
	s, err := tbl.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("rows: live=%d free=%d fileBlocks=%d\n", s.Live, s.Free, s.FileBlocks)
	ts, err := tbl.Tree().Stats()
	if err != nil {
		return err
	}
	fmt.Printf("tree: live=%d free=%d fileBlocks=%d\n", ts.Live, ts.Free, ts.FileBlocks)
	return nil
}

func logLine(f *os.File, sessionID uuid.UUID, line string) {
	fmt.Fprintf(f, "%s %s\n", sessionID, line)
}

// setupCloseHandler flushes the table to disk on SIGINT or SIGTERM.
func setupCloseHandler(tbl *rowtable.Table) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		tbl.Close()
		os.Exit(0)
	}()
}
