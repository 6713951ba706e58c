package lsmkv

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

// sstable 管理器. 持有全部已加载的 sstable，负责跨文件查询、溢写以及 compact.
//
// 启动之后，内存中的 nodes 是有效 sstable 的唯一依据，不会再扫描目录
type SSTManager struct {
	conf   *Config
	logger *zap.Logger
	nodes  []*Node // 按序号由旧到新排列
	seq    int32   // 已分配的最大序号
}

// 构造 sstable 管理器，并从目录中加载已有的 sstable
func NewSSTManager(conf *Config) (*SSTManager, error) {
	m := SSTManager{
		conf:   conf,
		logger: conf.Logger.Named("sst"),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return &m, nil
}

// 将一组按 key 升序排列的数据写为新的 sstable，并注册为最新的一个
func (m *SSTManager) Flush(kvs []*memtable.KV) (*Node, error) {
	node, err := m.writeNode(kvs)
	if err != nil {
		return nil, err
	}
	m.nodes = append(m.nodes, node)

	m.logger.Info("memtable flushed",
		zap.String("file", sstFile(node.Seq())),
		zap.Int("entries", node.Len()),
		zap.Uint64("bytes", node.Size()),
	)
	return node, nil
}

// 由新到旧查询 key. 第一个包含 key 的 sstable 决定结果：真实数据则返回，删除标记则视为不存在
func (m *SSTManager) Get(key []byte) ([]byte, bool, error) {
	value, ok, err := m.Lookup(key)
	if err != nil || !ok || value.Tombstone {
		return nil, false, err
	}
	return value.Data, true, nil
}

// 由新到旧查询 key 的原始数据，包括删除标记.
// 某个 sstable 的数据损坏时记录日志并跳过该 sstable，其他 io 错误直接返回
func (m *SSTManager) Lookup(key []byte) (memtable.Value, bool, error) {
	for i := len(m.nodes) - 1; i >= 0; i-- {
		value, ok, err := m.nodes[i].Get(key)
		if errors.Is(err, ErrCorruptedSSTable) {
			m.logger.Warn("skip corrupted sstable on lookup",
				zap.String("file", sstFile(m.nodes[i].Seq())),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			return memtable.Value{}, false, err
		}
		if ok {
			return value, true, nil
		}
	}
	return memtable.Value{}, false, nil
}

// 由旧到新返回全部 sstable
func (m *SSTManager) Nodes() []*Node {
	nodes := make([]*Node, len(m.nodes))
	copy(nodes, m.nodes)
	return nodes
}

// sstable 数量
func (m *SSTManager) Tables() int {
	return len(m.nodes)
}

func (m *SSTManager) Close() error {
	var err error
	for _, node := range m.nodes {
		err = multierr.Append(err, node.Close())
	}
	m.nodes = nil
	return err
}

// 分配下一个序号并写出 sstable 文件，返回加载后的节点
func (m *SSTManager) writeNode(kvs []*memtable.KV) (*Node, error) {
	m.seq++
	seq := m.seq

	sstWriter, err := NewSSTWriter(seq, m.conf)
	if err != nil {
		return nil, fmt.Errorf("create sst %d: %w", seq, err)
	}
	defer sstWriter.Close()

	for _, kv := range kvs {
		if err = sstWriter.Append(kv.Key, kv.Value); err != nil {
			return nil, err
		}
	}

	if _, _, err = sstWriter.Finish(); err != nil {
		return nil, fmt.Errorf("finish sst %d: %w", seq, err)
	}

	node, err := OpenNode(m.conf, seq)
	if err != nil {
		return nil, fmt.Errorf("open sst %d: %w", seq, err)
	}
	return node, nil
}
