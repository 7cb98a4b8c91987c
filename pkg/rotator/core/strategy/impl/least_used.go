package builtin

import (
	"sync"

	"github.com/emirpasic/gods/trees/binaryheap"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

type LeastUsedBuilder struct{}

func (b *LeastUsedBuilder) Build(_ *strategy.Config) (strategy.Strategy, error) {
	return NewLeastUsedStrategy(), nil
}

type leastUsedItem struct {
	addr  string
	count uint64
	seq   int
}

// 按完成数升序，相同时按首次出现顺序
func leastUsedComparator(a, b interface{}) int {
	ia, ib := a.(*leastUsedItem), b.(*leastUsedItem)
	if ia.count != ib.count {
		if ia.count < ib.count {
			return -1
		}
		return 1
	}
	return ia.seq - ib.seq
}

// LeastUsedStrategy 选完成请求数最少的 endpoint。
// 小顶堆配合惰性淘汰：计数变化时压入新项，旧项在堆顶被发现过期后丢弃，
// 单次选择摊还 O(log n)。
type LeastUsedStrategy struct {
	mu     sync.Mutex
	heap   *binaryheap.Heap
	counts map[string]uint64 // 最近一次入堆的完成数
	seqs   map[string]int    // 首次出现顺序，决定平局
	next   int
}

func NewLeastUsedStrategy() *LeastUsedStrategy {
	return &LeastUsedStrategy{
		heap:   binaryheap.NewWith(leastUsedComparator),
		counts: make(map[string]uint64),
		seqs:   make(map[string]int),
	}
}

func (r *LeastUsedStrategy) Name() string { return StrategyLeastUsed }

func (r *LeastUsedStrategy) Select(view strategy.PoolView, _ *types.SelectionContext) (*types.Endpoint, error) {
	endpoints := view.Usable()
	if len(endpoints) == 0 {
		return nil, errcode.ErrPoolExhausted
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byAddr := make(map[string]*types.Endpoint, len(endpoints))
	for _, ep := range endpoints {
		addr := ep.Addr()
		byAddr[addr] = ep
		if _, tracked := r.seqs[addr]; !tracked {
			r.seqs[addr] = r.next
			r.next++
			count := uint64(0)
			if stats, ok := view.Stats(addr); ok {
				count = stats.RequestsCompleted
			}
			r.counts[addr] = count
			r.heap.Push(&leastUsedItem{addr: addr, count: count, seq: r.seqs[addr]})
		}
	}

	for r.heap.Size() > 0 {
		raw, _ := r.heap.Peek()
		item := raw.(*leastUsedItem)

		ep, ok := byAddr[item.addr]
		if !ok {
			// 当前不可用，彻底移出跟踪，回归时重新注册
			r.heap.Pop()
			delete(r.counts, item.addr)
			delete(r.seqs, item.addr)
			continue
		}
		// 以池计数为准，过期项重新入堆
		if stats, ok := view.Stats(item.addr); ok && stats.RequestsCompleted != item.count {
			r.heap.Pop()
			r.counts[item.addr] = stats.RequestsCompleted
			r.heap.Push(&leastUsedItem{addr: item.addr, count: stats.RequestsCompleted, seq: item.seq})
			continue
		}
		if item.count != r.counts[item.addr] {
			// 堆里遗留的旧副本
			r.heap.Pop()
			continue
		}
		return ep, nil
	}
	return nil, errcode.ErrPoolExhausted
}

func (r *LeastUsedStrategy) RecordResult(ep *types.Endpoint, _ bool, _ float64) {
	addr := ep.Addr()

	r.mu.Lock()
	defer r.mu.Unlock()
	seq, tracked := r.seqs[addr]
	if !tracked {
		return
	}
	r.counts[addr]++
	r.heap.Push(&leastUsedItem{addr: addr, count: r.counts[addr], seq: seq})
}
