// Command evictiond is an illustrative cron-driven eviction sweep. It is
// not a production cache manager: victim selection is a plain round-robin
// over a fixed candidate list rather than the read-generation/LRU ranking a
// real cache daemon would use.
package main

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/intellect4all/pagecache/cache"
	"github.com/intellect4all/pagecache/recon"
)

func main() {
	zlog, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zlog.Sync()
	logger := cache.NewLogger(zlog)

	os.MkdirAll("./data-evictiond", 0755)
	engine, err := recon.NewEngine("./data-evictiond/pages.db", 128)
	if err != nil {
		zlog.Fatal("opening page store", zap.Error(err))
	}
	defer engine.Pager().Close()

	tree := cache.NewTree(nil, engine, engine,
		cache.WithLogger(logger),
		cache.WithStats(cache.NewAtomicStats()),
		cache.WithConfig(cache.Config{SessionMax: 8, HazardPerSession: 4, MaxForcedSpins: 64}),
	)

	candidates := seedCandidates(tree)
	session := tree.NewSession(0)

	loc, _ := time.LoadLocation("UTC")
	c := cron.New(cron.WithLocation(loc), cron.WithSeconds())

	next := 0
	_, err = c.AddFunc("*/5 * * * * *", func() {
		if len(candidates) == 0 {
			return
		}
		victim := candidates[next%len(candidates)]
		next++

		if err := tree.Evict(session, victim, cache.FlagWait); err != nil {
			zlog.Warn("eviction sweep step failed", zap.Error(err))
			return
		}
	})
	if err != nil {
		zlog.Fatal("scheduling eviction sweep", zap.Error(err))
	}

	c.Start()
	defer c.Stop()

	select {} // illustrative daemon: runs until killed
}

// seedCandidates builds a handful of leaf pages with staged records so the
// sweep has something to evict on its first few ticks.
func seedCandidates(tree *cache.Tree) []*cache.Page {
	var pages []*cache.Page
	for i := 0; i < 4; i++ {
		leaf := cache.NewPage(cache.PageLeaf)
		leaf.Payload = []recon.Record{
			{Key: []byte{byte(i)}, Value: []byte("seed")},
		}
		leaf.MarkModified()
		leaf.ParentRef = cache.NewMemRef(leaf) // stand-in parent slot, no real tree behind this demo
		pages = append(pages, leaf)
	}
	return pages
}
