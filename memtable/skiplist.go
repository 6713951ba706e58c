package memtable

import (
	"bytes"
	"math/rand"
	"time"
)

// 跳表最大高度
const maxSkiplistHeight = 16

// 跳表，未加锁，不保证并发安全
type Skiplist struct {
	head      *skipNode  // 跳表的头结点
	height    int        // 当前有效高度
	entrisCnt int        // 跳表中的 kv 对个数，包括删除标记
	size      int        // 跳表数据量大小，单位 byte
	rander    *rand.Rand // 用于 roll 出节点高度，每个跳表独享一个
}

// 跳表节点
type skipNode struct {
	nexts []*skipNode // 每层的后继节点
	key   []byte
	value Value
}

// 构造跳表实例
func NewSkiplist() MemTable {
	return &Skiplist{
		head:   &skipNode{nexts: make([]*skipNode, maxSkiplistHeight)},
		height: 1,
		rander: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// 写入一笔 kv 对到跳表. 如果 key 不存在，则为插入操作；如果 key 已存在则为覆盖操作
func (s *Skiplist) Put(key []byte, value Value) {
	// 记录每层最后一个小于 key 的节点，插入时作为前驱
	var prevs [maxSkiplistHeight]*skipNode
	move := s.head
	for level := s.height - 1; level >= 0; level-- {
		for move.nexts[level] != nil && bytes.Compare(move.nexts[level].key, key) < 0 {
			move = move.nexts[level]
		}
		prevs[level] = move
	}

	// key 已存在，覆盖之，并根据新老 value 的差值调整 size
	if next := move.nexts[0]; next != nil && bytes.Equal(next.key, key) {
		s.size += value.Len() - next.value.Len()
		next.value = value
		return
	}

	newNodeHeight := s.roll()
	if newNodeHeight > s.height {
		for level := s.height; level < newNodeHeight; level++ {
			prevs[level] = s.head
		}
		s.height = newNodeHeight
	}

	newNode := skipNode{
		nexts: make([]*skipNode, newNodeHeight),
		key:   key,
		value: value,
	}
	for level := 0; level < newNodeHeight; level++ {
		newNode.nexts[level] = prevs[level].nexts[level]
		prevs[level].nexts[level] = &newNode
	}

	s.size += len(key) + value.Len()
	s.entrisCnt++
}

// 从跳表中读取 kv 对. 删除标记同样视为存在，由调用方判断
func (s *Skiplist) Get(key []byte) (Value, bool) {
	move := s.head
	for level := s.height - 1; level >= 0; level-- {
		for move.nexts[level] != nil && bytes.Compare(move.nexts[level].key, key) < 0 {
			move = move.nexts[level]
		}
	}

	if next := move.nexts[0]; next != nil && bytes.Equal(next.key, key) {
		return next.value, true
	}
	return Value{}, false
}

// 获取跳表中全量 kv 对数据，按 key 升序
func (s *Skiplist) All() []*KV {
	kvs := make([]*KV, 0, s.entrisCnt)
	for move := s.head.nexts[0]; move != nil; move = move.nexts[0] {
		kvs = append(kvs, &KV{
			Key:   move.key,
			Value: move.value,
		})
	}
	return kvs
}

// 跳表数据量大小，单位 byte
func (s *Skiplist) Size() int {
	return s.size
}

// 跳表 kv 对数量
func (s *Skiplist) EntriesCnt() int {
	return s.entrisCnt
}

// roll 出一个节点的高度. 最小为 1，每提高 1 层，概率减少为 1/2
func (s *Skiplist) roll() int {
	level := 1
	for level < maxSkiplistHeight && s.rander.Intn(2) == 1 {
		level++
	}
	return level
}
