package wal

import (
	"os"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

// 预写日志写入口
type WALWriter struct {
	dest *os.File // 预写日志文件，以追加模式打开
}

// 构造器
func NewWALWriter(file string) (*WALWriter, error) {
	// 打开 wal 文件，如果文件不存在则进行创建
	dest, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &WALWriter{
		dest: dest,
	}, nil
}

// 写入一笔记录到 wal 文件中. 返回前记录已经 fsync 落盘
func (w *WALWriter) Write(kv *memtable.KV) error {
	if _, err := w.dest.Write(encodeRecord(kv)); err != nil {
		return err
	}
	return w.dest.Sync()
}

// 清空预写日志. 只能在 memtable 对应的 sstable 落盘之后调用
func (w *WALWriter) Clear() error {
	return w.Truncate(0)
}

// 把预写日志截断到 size 大小，用于丢弃尾部不完整的记录
func (w *WALWriter) Truncate(size int64) error {
	if err := w.dest.Truncate(size); err != nil {
		return err
	}
	return w.dest.Sync()
}

// 当前预写日志大小，单位 byte
func (w *WALWriter) Size() (int64, error) {
	info, err := w.dest.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (w *WALWriter) Close() error {
	return w.dest.Close()
}
