package lsmkv

import "errors"

var (
	// key 为空
	ErrEmptyKey = errors.New("key should not be empty")

	// sstable 的 magic number、条目数或索引与数据文件不一致
	ErrCorruptedSSTable = errors.New("corrupted sstable")

	// 存储引擎已经关闭
	ErrStoreClosed = errors.New("store is closed")
)
