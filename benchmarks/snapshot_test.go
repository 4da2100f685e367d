package benchmarks

import (
	"path/filepath"
	"testing"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph"
	"github.com/randalmurphal/nodegraph/pkg/nodegraph/catalog"
	"github.com/randalmurphal/nodegraph/pkg/nodegraph/snapshot"
)

// BenchmarkSnapshot_Export_500 measures exporting a 500-node graph.
func BenchmarkSnapshot_Export_500(b *testing.B) {
	g := buildChain(b, catalog.Builtin(), 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Snapshot()
	}
}

// BenchmarkSnapshot_Import_500 measures rebuilding a 500-node graph with
// full validation.
func BenchmarkSnapshot_Import_500(b *testing.B) {
	cat := catalog.Builtin()
	snap := buildChain(b, cat, 500).Snapshot()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := nodegraph.NewGraphFromSnapshot(snap, cat); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEncodeJSON measures JSON encoding of a 100-node snapshot.
func BenchmarkEncodeJSON(b *testing.B) {
	snap := buildChain(b, catalog.Builtin(), 100).Snapshot()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = snapshot.EncodeJSON(snap)
	}
}

// BenchmarkEncodeYAML measures YAML encoding of a 100-node snapshot.
func BenchmarkEncodeYAML(b *testing.B) {
	snap := buildChain(b, catalog.Builtin(), 100).Snapshot()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = snapshot.EncodeYAML(snap)
	}
}

// BenchmarkMemoryArchive_Save measures saving to the in-memory store.
func BenchmarkMemoryArchive_Save(b *testing.B) {
	archive := snapshot.NewArchive(snapshot.NewMemoryStore())
	snap := buildChain(b, catalog.Builtin(), 100).Snapshot()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = archive.Save("doc", snap)
	}
}

// BenchmarkSQLiteArchive_Save measures saving to SQLite.
func BenchmarkSQLiteArchive_Save(b *testing.B) {
	store, err := snapshot.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	archive := snapshot.NewArchive(store)
	snap := buildChain(b, catalog.Builtin(), 100).Snapshot()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = archive.Save("doc", snap)
	}
}

// BenchmarkSQLiteArchive_Load measures loading the latest revision.
func BenchmarkSQLiteArchive_Load(b *testing.B) {
	store, err := snapshot.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	archive := snapshot.NewArchive(store)
	if _, err := archive.Save("doc", buildChain(b, catalog.Builtin(), 100).Snapshot()); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = archive.Load("doc")
	}
}
