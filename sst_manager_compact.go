package lsmkv

import (
	"errors"

	"go.uber.org/zap"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

// sstable 数量超过阈值时，执行一次 compact
func (m *SSTManager) CompactIfNeeded() error {
	if len(m.nodes) <= m.conf.MaxSSTables {
		return nil
	}
	return m.Compact()
}

// 将全部 sstable 合并为一个:
// 1 由旧到新把每个 sstable 的数据写入同一个有序表，新数据覆盖旧数据
// 2 丢弃删除标记
// 3 写出新的 sstable 并替换内存中的 nodes
// 4 由旧到新删除旧文件
func (m *SSTManager) Compact() error {
	if len(m.nodes) == 0 {
		return nil
	}

	pickedNodes := m.nodes
	kvs, err := m.pickedNodesToKVs(pickedNodes)
	if err != nil {
		return err
	}

	var newNodes []*Node
	if len(kvs) > 0 {
		node, err := m.writeNode(kvs)
		if err != nil {
			return err
		}
		newNodes = append(newNodes, node)
	}

	// 新 sstable 注册之后即为权威数据，旧文件的清理结果不影响 compact 的成功与否
	m.nodes = newNodes
	m.removeNodes(pickedNodes)

	fields := []zap.Field{
		zap.Int("merged", len(pickedNodes)),
		zap.Int("entries", len(kvs)),
	}
	if len(newNodes) > 0 {
		fields = append(fields, zap.String("file", sstFile(newNodes[0].Seq())))
	}
	m.logger.Info("sstables compacted", fields...)
	return nil
}

// 由旧到新读取节点数据，写入同一个有序表，序号大的数据覆盖序号小的数据.
// 文件头或数据损坏的 sstable 整体跳过
func (m *SSTManager) pickedNodesToKVs(pickedNodes []*Node) ([]*memtable.KV, error) {
	memTable := m.conf.MemTableConstructor()
	for _, node := range pickedNodes {
		if err := node.Verify(); err != nil {
			if !errors.Is(err, ErrCorruptedSSTable) {
				return nil, err
			}
			m.logger.Warn("skip corrupted sstable on compact", zap.String("file", sstFile(node.Seq())), zap.Error(err))
			continue
		}

		kvs, err := node.GetAll()
		if err != nil {
			if !errors.Is(err, ErrCorruptedSSTable) {
				return nil, err
			}
			m.logger.Warn("skip corrupted sstable on compact", zap.String("file", sstFile(node.Seq())), zap.Error(err))
			continue
		}

		for _, kv := range kvs {
			memTable.Put(kv.Key, kv.Value)
		}
	}

	all := memTable.All()
	kvs := make([]*memtable.KV, 0, len(all))
	for _, kv := range all {
		if kv.Value.Tombstone {
			continue
		}
		kvs = append(kvs, kv)
	}
	return kvs, nil
}

// 由旧到新销毁节点. 某个节点重试后依然删除失败时记录日志并停止删除，
// 这样残留在磁盘上的只会是最新的若干个旧文件，重启后它们被当作比新 sstable 更旧的数据加载，
// 其中的删除标记依然能够遮蔽更旧的数据
func (m *SSTManager) removeNodes(nodes []*Node) {
	for i, node := range nodes {
		if err := node.Destroy(); err != nil {
			m.logger.Warn("failed to delete old sstable",
				zap.String("file", sstFile(node.Seq())),
				zap.Int("attempts", m.conf.DeleteAttempts),
				zap.Error(err),
			)
			for _, rest := range nodes[i+1:] {
				_ = rest.Close()
			}
			return
		}
	}
}
