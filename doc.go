// Package lsmkv 实现了一个嵌入式、单进程的 LSM 结构 kv 存储.
//
// 写入流程: Put/Delete -> 预写日志 (fsync) -> memtable -> (写满) 溢写为 sstable -> 清空预写日志 -> 按需 compact
// 读取流程: Get -> memtable -> sstable (由新到旧)
//
// 磁盘布局:
//
//	dir/
//	├── wal/wal.log   预写日志，每行一条 PUT / DEL 记录
//	├── 000001.sst    sstable 数据文件: [magic][count] + [keyLen][key][valLen|-1][value]...
//	├── 000001.idx    sstable 索引文件: [keyLen][key][offset]...
//	└── ...
//
// 文件名中的序号单调递增，序号越大数据越新. 删除通过删除标记 (tombstone) 实现，
// 只有在 compact 时才会被真正清理.
//
// Store 不是并发安全的，同一时刻只能被一个 goroutine 使用.
package lsmkv
