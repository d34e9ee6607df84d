package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestSaveIdempotent(t *testing.T) {
	sink := NewTextSink(testLogger)
	path := filepath.Join(t.TempDir(), "text", "news_info.txt")
	lines := []string{"▲ City Hall 10:00", "▲ Station Square 14:00"}

	for i := 0; i < 2; i++ {
		if err := sink.Save(path, lines); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	got, err := sink.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "▲ City Hall 10:00\n▲ Station Square 14:00\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSaveReplacesPriorContent(t *testing.T) {
	sink := NewTextSink(testLogger)
	path := filepath.Join(t.TempDir(), "news.txt")

	if err := sink.Save(path, []string{"▲ a", "▲ b", "▲ c"}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Save(path, []string{"▲ z"}); err != nil {
		t.Fatal(err)
	}

	got, _ := sink.Load(path)
	if got != "▲ z\n" {
		t.Errorf("expected full replacement, got %q", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestSaveRejectsEmpty(t *testing.T) {
	sink := NewTextSink(testLogger)
	dir := filepath.Join(t.TempDir(), "never")
	path := filepath.Join(dir, "news.txt")

	for _, lines := range [][]string{nil, {}} {
		err := sink.Save(path, lines)
		if !errors.Is(err, types.ErrEmptyResult) {
			t.Fatalf("expected ErrEmptyResult, got %v", err)
		}
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file must not be created, stat err=%v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("directory must not be created, stat err=%v", err)
	}
}

func TestSaveEmptyKeepsExisting(t *testing.T) {
	sink := NewTextSink(testLogger)
	path := filepath.Join(t.TempDir(), "news.txt")
	if err := sink.Save(path, []string{"▲ keep"}); err != nil {
		t.Fatal(err)
	}

	_ = sink.Save(path, nil)

	got, _ := sink.Load(path)
	if got != "▲ keep\n" {
		t.Errorf("existing file must be untouched, got %q", got)
	}
}

func TestSaveConcurrent(t *testing.T) {
	sink := NewTextSink(testLogger)
	path := filepath.Join(t.TempDir(), "news.txt")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lines := []string{fmt.Sprintf("▲ run %d first", i), fmt.Sprintf("▲ run %d second", i)}
			if err := sink.Save(path, lines); err != nil {
				t.Errorf("save: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := sink.Load(path)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected exactly one run's lines, got %q", got)
	}
	var run int
	if _, err := fmt.Sscanf(lines[0], "▲ run %d first", &run); err != nil {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != fmt.Sprintf("▲ run %d second", run) {
		t.Errorf("lines from different runs interleaved: %q", got)
	}
}

func TestLoadMissing(t *testing.T) {
	sink := NewTextSink(testLogger)
	_, err := sink.Load(filepath.Join(t.TempDir(), "absent.txt"))
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJSONLStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	s, err := NewJSONLStore(path, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"a", "b"} {
		b := &types.Briefing{ID: id, Date: "2024-03-05", Analysis: json.RawMessage(`{"events":[]}`), CreatedAt: time.Now()}
		if err := s.Record(context.Background(), b); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var b types.Briefing
		if err := json.Unmarshal(sc.Bytes(), &b); err != nil {
			t.Fatalf("bad record line: %v", err)
		}
		ids = append(ids, b.ID)
	}
	if strings.Join(ids, ",") != "a,b" {
		t.Errorf("expected records a,b got %v", ids)
	}
}

func TestNewRecordStoreSelection(t *testing.T) {
	cfg := config.DefaultConfig().Storage
	cfg.RecordsPath = ""
	s, err := NewRecordStore(&cfg, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "none" {
		t.Errorf("expected nop store, got %s", s.Name())
	}

	cfg.RecordsPath = filepath.Join(t.TempDir(), "r.jsonl")
	s, err = NewRecordStore(&cfg, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Name() != "jsonl" {
		t.Errorf("expected jsonl store, got %s", s.Name())
	}
}

type failingStore struct{ calls int }

func (f *failingStore) Record(context.Context, *types.Briefing) error {
	f.calls++
	return errors.New("down")
}
func (f *failingStore) Close() error { return nil }
func (f *failingStore) Name() string { return "failing" }

func TestMultiStoreContinuesAfterFailure(t *testing.T) {
	bad := &failingStore{}
	path := filepath.Join(t.TempDir(), "r.jsonl")
	good, err := NewJSONLStore(path, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	m := NewMultiStore([]RecordStore{bad, good}, testLogger)
	if err := m.Record(context.Background(), &types.Briefing{ID: "x"}); err == nil {
		t.Error("expected first backend error to surface")
	}
	_ = m.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"id":"x"`) {
		t.Errorf("second backend should still receive the record, got %q", data)
	}
}

func TestBriefingDocument(t *testing.T) {
	b := &types.Briefing{ID: "id-1", Analysis: json.RawMessage(`{"count": 2}`)}
	doc := briefingDocument(b)

	var analysis bson.M
	for _, e := range doc {
		if e.Key == "analysis" {
			analysis, _ = e.Value.(bson.M)
		}
	}
	if analysis == nil {
		t.Fatal("expected nested analysis document")
	}

	b.Analysis = json.RawMessage(`not json`)
	doc = briefingDocument(b)
	if last := doc[len(doc)-1]; last.Key != "analysis_raw" {
		t.Errorf("expected raw fallback, got key %q", last.Key)
	}
}
