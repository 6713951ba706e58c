package wal

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

var (
	// 预写日志中间出现无法解析的记录
	ErrCorruptedWAL = errors.New("corrupted wal record")
	// 预写日志尾部存在写了一半的记录，已被丢弃
	ErrTornTail = errors.New("torn wal tail")
)

// 每条记录占一行:
//
//	PUT "<key>"="<value>"
//	DEL "<key>"
//
// key 与 value 均使用 strconv.Quote 转义，任意字节（包括 = 和换行）都可以安全写入.
// 删除使用独立的 DEL 记录，不依赖任何保留字符串
var (
	putPrefix = []byte("PUT ")
	delPrefix = []byte("DEL ")
)

func encodeRecord(kv *memtable.KV) []byte {
	var buf []byte
	if kv.Value.Tombstone {
		buf = append(buf, delPrefix...)
		buf = strconv.AppendQuote(buf, string(kv.Key))
	} else {
		buf = append(buf, putPrefix...)
		buf = strconv.AppendQuote(buf, string(kv.Key))
		buf = append(buf, '=')
		buf = strconv.AppendQuote(buf, string(kv.Value.Data))
	}
	return append(buf, '\n')
}

// 解析一行记录，line 不包含结尾的换行符
func decodeRecord(line []byte) (*memtable.KV, error) {
	switch {
	case bytes.HasPrefix(line, delPrefix):
		key, rest, err := unquotePrefix(line[len(delPrefix):])
		if err != nil || len(rest) != 0 {
			return nil, ErrCorruptedWAL
		}
		return &memtable.KV{Key: key, Value: memtable.Deleted()}, nil

	case bytes.HasPrefix(line, putPrefix):
		key, rest, err := unquotePrefix(line[len(putPrefix):])
		if err != nil || len(rest) == 0 || rest[0] != '=' {
			return nil, ErrCorruptedWAL
		}
		value, rest, err := unquotePrefix(rest[1:])
		if err != nil || len(rest) != 0 {
			return nil, ErrCorruptedWAL
		}
		return &memtable.KV{Key: key, Value: memtable.Present(value)}, nil
	}

	return nil, ErrCorruptedWAL
}

// 从 buf 头部解析一个带引号的字符串，返回解码结果以及剩余部分
func unquotePrefix(buf []byte) ([]byte, []byte, error) {
	quoted, err := strconv.QuotedPrefix(string(buf))
	if err != nil {
		return nil, nil, err
	}
	s, err := strconv.Unquote(quoted)
	if err != nil {
		return nil, nil, err
	}
	return []byte(s), buf[len(quoted):], nil
}
