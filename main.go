// Command bpidx maintains a disk-based B+ tree index over int32 keys and
// values, one tree per file.
//
// Usage:
//
//	bpidx -c index_file B          create a new tree (overwrites)
//	bpidx -i index_file data_file  insert "key,value" lines
//	bpidx -d index_file data_file  delete "key" lines
//	bpidx -s index_file key        point lookup (prints descent path)
//	bpidx -r index_file low high   range scan
//	bpidx -b [config.yaml]         run the benchmark suite
//	bpidx -p results.csv out.png   plot benchmark results
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/btree-query-bench/bpidx/dbms/index/bptree"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, w io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(w, "unknown command")
		return nil
	}

	switch args[0] {
	case "-c":
		if len(args) != 3 {
			return fmt.Errorf("usage: -c index_file B")
		}
		b, err := parseInt32(args[2])
		if err != nil {
			return fmt.Errorf("bad branching factor %q: %w", args[2], err)
		}
		tree, err := bptree.Create(args[1], b)
		if err != nil {
			return err
		}
		return tree.Close()

	case "-i":
		if len(args) != 3 {
			return fmt.Errorf("usage: -i index_file data_file")
		}
		tree, err := bptree.Open(args[1])
		if err != nil {
			return err
		}
		defer tree.Close()
		return forEachLine(args[2], func(lineno int, line string) error {
			fields := strings.Split(line, ",")
			if len(fields) != 2 {
				return fmt.Errorf("%s:%d: want key,value, got %q", args[2], lineno, line)
			}
			key, err := parseInt32(strings.TrimSpace(fields[0]))
			if err != nil {
				return fmt.Errorf("%s:%d: bad key: %w", args[2], lineno, err)
			}
			value, err := parseInt32(strings.TrimSpace(fields[1]))
			if err != nil {
				return fmt.Errorf("%s:%d: bad value: %w", args[2], lineno, err)
			}
			return tree.Insert(key, value)
		})

	case "-d":
		if len(args) != 3 {
			return fmt.Errorf("usage: -d index_file data_file")
		}
		tree, err := bptree.Open(args[1])
		if err != nil {
			return err
		}
		defer tree.Close()
		return forEachLine(args[2], func(lineno int, line string) error {
			key, err := parseInt32(line)
			if err != nil {
				return fmt.Errorf("%s:%d: bad key: %w", args[2], lineno, err)
			}
			_, err = tree.Delete(key)
			return err
		})

	case "-s":
		if len(args) != 3 {
			return fmt.Errorf("usage: -s index_file key")
		}
		tree, err := bptree.Open(args[1])
		if err != nil {
			return err
		}
		defer tree.Close()
		key, err := parseInt32(args[2])
		if err != nil {
			return fmt.Errorf("bad key %q: %w", args[2], err)
		}
		return tree.Lookup(w, key)

	case "-r":
		if len(args) != 4 {
			return fmt.Errorf("usage: -r index_file low high")
		}
		tree, err := bptree.Open(args[1])
		if err != nil {
			return err
		}
		defer tree.Close()
		low, err := parseInt32(args[2])
		if err != nil {
			return fmt.Errorf("bad low key %q: %w", args[2], err)
		}
		high, err := parseInt32(args[3])
		if err != nil {
			return fmt.Errorf("bad high key %q: %w", args[3], err)
		}
		it, err := tree.Range(low, high)
		if err != nil {
			return err
		}
		defer it.Close()
		for it.Next() {
			fmt.Fprintf(w, "%d, %d\n", it.Key(), it.Value())
		}
		return it.Error()

	case "-b":
		configPath := ""
		if len(args) > 1 {
			configPath = args[1]
		}
		return runBench(configPath, w)

	case "-p":
		if len(args) != 3 {
			return fmt.Errorf("usage: -p results.csv out.png")
		}
		return plotResults(args[1], args[2])

	default:
		fmt.Fprintln(w, "unknown command")
		return nil
	}
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// forEachLine calls fn for every non-empty line of path, trimmed.
func forEachLine(path string, fn func(lineno int, line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(lineno, line); err != nil {
			return err
		}
	}
	return sc.Err()
}
