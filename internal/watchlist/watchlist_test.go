package watchlist

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/betbot/snipebot/internal/domain"
)

func item(id string, activation int64) domain.WatchItem {
	return domain.WatchItem{
		ID:             id,
		AssetID:        "asset-" + id,
		TickSize:       domain.Price{Pips: 100},
		ActivationTime: time.Unix(activation, 0),
	}
}

func assertSorted(t *testing.T, snap []domain.WatchItem) {
	t.Helper()
	for i := 1; i < len(snap); i++ {
		prev, cur := snap[i-1], snap[i]
		if !prev.Priority && cur.Priority {
			t.Fatalf("promoted item %s after un-promoted %s", cur.ID, prev.ID)
		}
		if prev.Priority == cur.Priority && prev.ActivationTime.After(cur.ActivationTime) {
			t.Fatalf("activation order violated at %d: %s > %s", i, prev.ID, cur.ID)
		}
	}
}

func TestInsertKeepsSortedOrder(t *testing.T) {
	w := New(100)
	for _, ts := range []int64{500, 100, 900, 300, 700} {
		w.InsertOrUpdate(item(fmt.Sprintf("m%d", ts), ts))
	}
	snap := w.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("size got=%d want=5", len(snap))
	}
	assertSorted(t, snap)
	if snap[0].ID != "m100" {
		t.Fatalf("front got=%s want=m100", snap[0].ID)
	}
}

func TestInsertDuplicateUpdatesInPlace(t *testing.T) {
	w := New(100)
	w.InsertOrUpdate(item("a", 100))
	w.InsertOrUpdate(item("b", 200))

	updated := item("a", 300)
	updated.Question = "renamed"
	w.InsertOrUpdate(updated)

	if w.Size() != 2 {
		t.Fatalf("duplicate insert must not grow the list, size=%d", w.Size())
	}
	snap := w.Snapshot()
	if snap[0].ID != "b" || snap[1].ID != "a" {
		t.Fatalf("update must re-sort: got %s,%s", snap[0].ID, snap[1].ID)
	}
	if snap[1].Question != "renamed" {
		t.Fatal("update must replace fields")
	}
}

func TestUpdateKeepsPromotion(t *testing.T) {
	w := New(100)
	w.InsertOrUpdate(item("a", 100))
	w.Promote("a")

	// 目录重扫会重复发现同一市场；促升标记不能因此丢失
	w.InsertOrUpdate(item("a", 100))
	snap := w.Snapshot()
	if !snap[0].Priority {
		t.Fatal("re-insert dropped the priority flag")
	}
}

func TestPromoteMovesToFront(t *testing.T) {
	w := New(100)
	w.InsertOrUpdate(item("a", 100))
	w.InsertOrUpdate(item("b", 200))
	w.InsertOrUpdate(item("c", 300))

	w.Promote("c")
	snap := w.Snapshot()
	if snap[0].ID != "c" || !snap[0].Priority {
		t.Fatalf("promoted item must lead the snapshot, front=%s", snap[0].ID)
	}
	assertSorted(t, snap)

	// 不存在的 ID：no-op
	w.Promote("zzz")
	if w.Size() != 3 {
		t.Fatal("promote of unknown id must be a no-op")
	}
}

func TestCapacityEvictsEarliestUnpromoted(t *testing.T) {
	w := New(200)
	for i := 0; i < 200; i++ {
		w.InsertOrUpdate(item(fmt.Sprintf("m%03d", i), int64(1000+i)))
	}

	// 第 201 个条目激活最早：应逐出原来最早的 m000，而不是新条目
	w.InsertOrUpdate(item("newcomer", 1))
	if w.Size() != 200 {
		t.Fatalf("size got=%d want=200", w.Size())
	}
	if !w.Contains("newcomer") {
		t.Fatal("newly inserted item must survive eviction")
	}
	if w.Contains("m000") {
		t.Fatal("original earliest item must be evicted")
	}
}

func TestEvictionNeverRemovesPromotedWhileUnpromotedRemain(t *testing.T) {
	w := New(3)
	w.InsertOrUpdate(item("a", 100))
	w.InsertOrUpdate(item("b", 200))
	w.InsertOrUpdate(item("c", 300))
	w.Promote("a")

	w.InsertOrUpdate(item("d", 400))
	if !w.Contains("a") {
		t.Fatal("promoted item evicted while un-promoted items remain")
	}
	if w.Size() != 3 {
		t.Fatalf("size got=%d want=3", w.Size())
	}
}

func TestRemoveReturnsOwnership(t *testing.T) {
	w := New(10)
	w.InsertOrUpdate(item("a", 100))

	if !w.Remove("a") {
		t.Fatal("first remove must report true")
	}
	if w.Remove("a") {
		t.Fatal("second remove must report false")
	}
	if w.Remove("never-there") {
		t.Fatal("remove of absent id must be a safe no-op")
	}
}

func TestConcurrentMutationKeepsInvariants(t *testing.T) {
	w := New(50)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("m%d", r.Intn(120))
				switch r.Intn(4) {
				case 0:
					w.InsertOrUpdate(item(id, int64(r.Intn(10000))))
				case 1:
					w.Promote(id)
				case 2:
					w.Remove(id)
				default:
					_ = w.Snapshot()
				}
			}
		}(int64(g))
	}
	wg.Wait()

	snap := w.Snapshot()
	if len(snap) > 50 {
		t.Fatalf("capacity invariant violated: %d", len(snap))
	}
	assertSorted(t, snap)

	seen := map[string]bool{}
	for _, it := range snap {
		if seen[it.ID] {
			t.Fatalf("duplicate id in snapshot: %s", it.ID)
		}
		seen[it.ID] = true
	}
}
