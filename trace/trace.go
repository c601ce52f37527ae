// Package trace parses and replays CS:APP-style allocator trace files
// (".rep" files): a header giving a suggested heap size and operation
// count, followed by one line per operation. It is deliberately kept
// separate from the core allocator package — spec.md's scope section
// calls the trace driver an external collaborator, not part of the
// allocator proper — so the core never imports this package, only the
// other way around.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/gomalloc"
)

// OpKind identifies one traced operation.
type OpKind int

const (
	OpAlloc OpKind = iota
	OpRealloc
	OpFree
)

// Op is one traced operation. ID indexes into the replay's block table;
// Size is the requested payload size for OpAlloc/OpRealloc and unused
// for OpFree.
type Op struct {
	Kind OpKind
	ID   int
	Size int
}

// Trace is a parsed trace file: a suggested initial heap size (a hint,
// not enforced) and the operation sequence to replay against it.
type Trace struct {
	SuggestedHeapSize int
	NumIDs            int
	Ops               []Op
}

// Load reads and parses the trace file at path.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a trace in the classic four-line-header format:
//
//	sugg_heapsize
//	num_ids
//	num_ops
//	weight
//	<num_ids lines of "id size", the allocation-size table, unused by Replay>
//	<num_ops lines of "op id size">
//
// op is 0 (alloc), 1 (realloc), or 2 (free); size is ignored for free.
func Parse(r io.Reader) (*Trace, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	header := make([]int, 0, 4)
	for len(header) < 4 {
		line, ok := nextNonEmptyLine(sc)
		if !ok {
			return nil, fmt.Errorf("trace: truncated header")
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return nil, fmt.Errorf("trace: header line %q: %w", line, err)
		}
		header = append(header, n)
	}
	t := &Trace{SuggestedHeapSize: header[0], NumIDs: header[1]}
	numOps := header[2]

	for i := 0; i < t.NumIDs; i++ {
		if _, ok := nextNonEmptyLine(sc); !ok {
			return nil, fmt.Errorf("trace: truncated id table at entry %d", i)
		}
	}

	t.Ops = make([]Op, 0, numOps)
	for i := 0; i < numOps; i++ {
		line, ok := nextNonEmptyLine(sc)
		if !ok {
			return nil, fmt.Errorf("trace: truncated op list at entry %d", i)
		}
		op, err := parseOp(line)
		if err != nil {
			return nil, fmt.Errorf("trace: op %d: %w", i, err)
		}
		t.Ops = append(t.Ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return t, nil
}

func nextNonEmptyLine(sc *bufio.Scanner) (string, bool) {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		return line, true
	}
	return "", false
}

func parseOp(line string) (Op, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Op{}, fmt.Errorf("malformed op line %q", line)
	}
	kind, err := strconv.Atoi(fields[0])
	if err != nil {
		return Op{}, fmt.Errorf("bad op kind %q: %w", fields[0], err)
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return Op{}, fmt.Errorf("bad op id %q: %w", fields[1], err)
	}
	op := Op{Kind: OpKind(kind), ID: id}
	if len(fields) >= 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil {
			return Op{}, fmt.Errorf("bad op size %q: %w", fields[2], err)
		}
		op.Size = size
	}
	return op, nil
}

// Stats summarizes one Replay run.
type Stats struct {
	NumOps      int
	PeakBytes   int // largest region.Size() observed over the run
	FinalBytes  int
	CheckFailed int // first non-zero CheckHeap violation count seen, if checkEvery > 0; else 0
}

// Replay runs every op in t against a, in order, maintaining a table
// mapping trace IDs to the live block each currently refers to. An
// OpFree against an ID with no live block is a no-op, tolerating traces
// that free an allocation skipped because the allocator returned nil
// (out of memory); an OpRealloc against such an ID allocates a fresh
// block, as Realloc(nil, size) does.
//
// checkEvery, if > 0, calls a.CheckHeap(false) after every checkEvery
// operations and records the first non-zero violation count seen.
func Replay(a *gomalloc.Allocator, t *Trace, sizer func() int, checkEvery int) Stats {
	blocks := make(map[int][]byte, t.NumIDs)
	var stats Stats

	for i, op := range t.Ops {
		switch op.Kind {
		case OpAlloc:
			blocks[op.ID] = a.Alloc(op.Size)
		case OpRealloc:
			blocks[op.ID] = a.Realloc(blocks[op.ID], op.Size)
		case OpFree:
			a.Free(blocks[op.ID])
			delete(blocks, op.ID)
		}
		stats.NumOps++

		if sizer != nil {
			if n := sizer(); n > stats.PeakBytes {
				stats.PeakBytes = n
			}
		}
		if checkEvery > 0 && (i+1)%checkEvery == 0 && stats.CheckFailed == 0 {
			stats.CheckFailed = a.CheckHeap(false)
		}
	}
	if sizer != nil {
		stats.FinalBytes = sizer()
	}
	return stats
}
