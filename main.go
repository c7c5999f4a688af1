// Command papyrus is a thin demonstration entry point, not a CLI: it
// wires a two-layer Storage (an in-memory layer shadowing an on-disk AOL
// layer) and walks through insert/latest/delete/revisions once, the way
// the teacher's own stub main.go exercised a single WAL write.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/papyrusdb/papyrus/data"
	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/layer/aol"
	"github.com/papyrusdb/papyrus/layer/mem"
	"github.com/papyrusdb/papyrus/storage"
	"github.com/papyrusdb/papyrus/value"
)

func main() {
	mem.Register()
	aol.Register()

	dir, err := os.MkdirTemp("", "papyrus-demo-*")
	if err != nil {
		slog.Error("creating demo directory", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	s, err := storage.New(
		[]string{"mem://cache", "aol://" + filepath.Join(dir, "log.aol")},
		storage.WithDefaultLayer("aol://"+filepath.Join(dir, "segment-%d.aol")),
	)
	if err != nil {
		slog.Error("opening storage", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	k, err := key.New(int64(42))
	if err != nil {
		slog.Error("constructing key", "error", err)
		os.Exit(1)
	}
	v, err := value.New([]byte("hello, papyrus"))
	if err != nil {
		slog.Error("constructing value", "error", err)
		os.Exit(1)
	}
	d, err := data.New(k, v, map[string]key.Key{})
	if err != nil {
		slog.Error("constructing data", "error", err)
		os.Exit(1)
	}

	id, err := s.Insert(d)
	if err != nil {
		slog.Error("insert", "error", err)
		os.Exit(1)
	}
	fmt.Printf("inserted %s as revision %s\n", k, id)

	got, ok, err := s.Latest(k)
	if err != nil {
		slog.Error("latest", "error", err)
		os.Exit(1)
	}
	fmt.Printf("latest(%s) ok=%v value=%q\n", k, ok, got.Value().Raw())

	if _, err := s.Delete(k); err != nil {
		slog.Error("delete", "error", err)
		os.Exit(1)
	}

	revs, err := s.Revisions(k)
	if err != nil {
		slog.Error("revisions", "error", err)
		os.Exit(1)
	}
	fmt.Printf("revisions(%s) = %d, head.is_deleted=%v\n", k, len(revs), revs[0].IsDeleted())
}
