// Command allocbench replays one or more CS:APP-style trace files against
// independent gomalloc allocators. Once every trace has finished it prints,
// for each trace when -v is set (and always for a trace whose heap check
// failed), the op count, peak and final region size, and elapsed time.
// Multiple trace files run concurrently, each against its
// own Allocator over its own region — never two goroutines touching the
// same heap, since an Allocator itself stays single-threaded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/bytedance/gopkg/util/gopool"

	"github.com/cloudwego/gomalloc"
	"github.com/cloudwego/gomalloc/region"
	"github.com/cloudwego/gomalloc/trace"
)

func main() {
	regionSize := flag.Int("region", 64<<20, "bytes to reserve per trace's region")
	traceTuning := flag.Bool("trace-tuning", false, "enable the 448->528 / 112->144 benchmark size bumps")
	checkEvery := flag.Int("check-every", 0, "run CheckHeap after every N ops (0 disables)")
	verbose := flag.Bool("v", false, "print per-trace results once all traces finish")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: allocbench [flags] trace.rep [trace.rep ...]")
		os.Exit(2)
	}

	results := make([]result, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		gopool.CtxGo(context.Background(), func() {
			defer wg.Done()
			results[i] = runOne(path, *regionSize, *traceTuning, *checkEvery)
		})
	}
	wg.Wait()

	failed := 0
	for i, r := range results {
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", paths[i], r.err)
			failed++
			continue
		}
		if *verbose || r.stats.CheckFailed > 0 {
			fmt.Printf("%-30s ops=%-8d peak=%-10d final=%-10d elapsed=%s checkFailed=%d\n",
				paths[i], r.stats.NumOps, r.stats.PeakBytes, r.stats.FinalBytes, r.elapsed, r.stats.CheckFailed)
		}
		if r.stats.CheckFailed > 0 {
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

type result struct {
	stats   trace.Stats
	elapsed time.Duration
	err     error
}

func runOne(path string, regionSize int, traceTuning bool, checkEvery int) result {
	tr, err := trace.Load(path)
	if err != nil {
		return result{err: err}
	}

	mem, err := region.NewMem(regionSize)
	if err != nil {
		return result{err: fmt.Errorf("region: %w", err)}
	}

	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", path), 0)
	a, err := gomalloc.New(mem, gomalloc.WithTraceTuning(traceTuning), gomalloc.WithLogger(logger))
	if err != nil {
		return result{err: fmt.Errorf("init: %w", err)}
	}

	start := time.Now()
	stats := trace.Replay(a, tr, mem.Size, checkEvery)
	return result{stats: stats, elapsed: time.Since(start)}
}
