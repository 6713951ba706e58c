package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

type WALReader struct {
	file      string
	src       *os.File
	reader    *bufio.Reader
	validSize int64 // 最后一条完整记录结束位置在文件中的 offset
}

func NewWALReader(file string) (*WALReader, error) {
	src, err := os.OpenFile(file, os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &WALReader{
		file:   file,
		src:    src,
		reader: bufio.NewReader(src),
	}, nil
}

// 从头按写入顺序读取全部记录.
//
// 最后一行没有换行符，或者最后一行无法解析，视为写了一半的记录：丢弃之，
// 返回此前的全部记录以及 ErrTornTail，ValidSize 给出可以安全截断到的位置.
// 无法解析的记录后面还有数据时返回 ErrCorruptedWAL.
func (w *WALReader) ReadAll() ([]*memtable.KV, error) {
	if _, err := w.src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	w.reader.Reset(w.src)
	w.validSize = 0

	var (
		kvs []*memtable.KV
		bad error // 上一行无法解析
	)
	for {
		line, err := w.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		eof := err != nil

		if bad != nil {
			// 无法解析的正是最后一行
			if eof && len(line) == 0 {
				return kvs, fmt.Errorf("%w: %v", ErrTornTail, bad)
			}
			return nil, bad
		}

		if eof {
			if len(line) == 0 {
				return kvs, nil
			}
			return kvs, fmt.Errorf("%w: unterminated record at offset %d", ErrTornTail, w.validSize)
		}

		kv, err := decodeRecord(line[:len(line)-1])
		if err != nil {
			bad = fmt.Errorf("%w at offset %d", err, w.validSize)
			continue
		}

		kvs = append(kvs, kv)
		w.validSize += int64(len(line))
	}
}

// 可以安全截断到的大小，单位 byte
func (w *WALReader) ValidSize() int64 {
	return w.validSize
}

func (w *WALReader) Close() error {
	w.reader.Reset(w.src)
	return w.src.Close()
}

// 读取 wal 文件中的全部记录. 文件不存在时返回空
func ReadFile(file string) ([]*memtable.KV, int64, error) {
	reader, err := NewWALReader(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	kvs, err := reader.ReadAll()
	return kvs, reader.ValidSize(), err
}
