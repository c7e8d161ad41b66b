package toollog

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLog_AppendAndSince(t *testing.T) {
	l := New()
	l.Record("search:tavily", "tesla news", true, "found 5", time.Now())
	l.Record("llm:report", "tesla", true, "", time.Now())

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	delta := l.Since(1)
	if len(delta) != 1 || delta[0].Provider != "llm:report" {
		t.Errorf("Since(1) = %+v", delta)
	}
	if got := l.Since(5); got != nil {
		t.Errorf("Since beyond end = %v, want nil", got)
	}
}

func TestLog_TruncatesLongFields(t *testing.T) {
	l := New()
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	l.Record("p", string(long), false, string(long), time.Now())

	e := l.Snapshot()[0]
	if len(e.Request) != 300 || len(e.Detail) != 300 {
		t.Errorf("request/detail lengths = %d/%d, want 300", len(e.Request), len(e.Detail))
	}
}

func TestLog_ConcurrentAppend(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Record("p", fmt.Sprintf("req-%d", i), true, "", time.Now())
		}(i)
	}
	wg.Wait()

	if l.Len() != 50 {
		t.Errorf("Len() = %d, want 50", l.Len())
	}
	// 快照是副本，修改不回写
	snap := l.Snapshot()
	snap[0].Provider = "mutated"
	if l.Snapshot()[0].Provider == "mutated" {
		t.Errorf("Snapshot leaked internal slice")
	}
}
