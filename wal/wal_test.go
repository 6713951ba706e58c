package wal

import (
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

func Test_WAL(t *testing.T) {
	file := path.Join(t.TempDir(), "test.wal")
	walWriter, err := NewWALWriter(file)
	require.NoError(t, err)
	defer walWriter.Close()

	skiplist := memtable.NewSkiplist()

	kvs := make([]*memtable.KV, 0, 100)
	for i := 0; i < 100; i++ {
		kv := &memtable.KV{
			Key:   []byte{'a' + uint8(i)},
			Value: memtable.Present([]byte{'b' + uint8(i)}),
		}
		if i%10 == 0 {
			kv.Value = memtable.Deleted()
		}
		kvs = append(kvs, kv)
	}

	for _, kv := range kvs {
		skiplist.Put(kv.Key, kv.Value)
		require.NoError(t, walWriter.Write(kv))
	}

	walReader, err := NewWALReader(file)
	require.NoError(t, err)
	defer walReader.Close()

	restored, err := walReader.ReadAll()
	require.NoError(t, err)
	assert.Len(t, restored, len(kvs))

	// 按写入顺序重放到新的有序表中
	restoredSkiplist := memtable.NewSkiplist()
	for _, kv := range restored {
		restoredSkiplist.Put(kv.Key, kv.Value)
	}

	originKVs := skiplist.All()
	restoredKVs := restoredSkiplist.All()
	require.Equal(t, len(originKVs), len(restoredKVs))
	for i := 0; i < len(originKVs); i++ {
		assert.Equal(t, originKVs[i].Key, restoredKVs[i].Key, "index: %d", i)
		assert.Equal(t, originKVs[i].Value.Tombstone, restoredKVs[i].Value.Tombstone, "index: %d", i)
		assert.Equal(t, originKVs[i].Value.Data, restoredKVs[i].Value.Data, "index: %d", i)
	}
}

func Test_WAL_Record(t *testing.T) {
	tests := []struct {
		name string
		kv   *memtable.KV
		line string
	}{
		{
			name: "put",
			kv:   &memtable.KV{Key: []byte("k1"), Value: memtable.Present([]byte("v1"))},
			line: "PUT \"k1\"=\"v1\"\n",
		},
		{
			name: "delete",
			kv:   &memtable.KV{Key: []byte("k1"), Value: memtable.Deleted()},
			line: "DEL \"k1\"\n",
		},
		{
			name: "value looks like a tombstone",
			kv:   &memtable.KV{Key: []byte("k"), Value: memtable.Present([]byte("null"))},
			line: "PUT \"k\"=\"null\"\n",
		},
		{
			name: "separators and binary",
			kv:   &memtable.KV{Key: []byte("a=b\n"), Value: memtable.Present([]byte{0xff, '"', 0})},
			line: "PUT \"a=b\\n\"=\"\\xff\\\"\\x00\"\n",
		},
		{
			name: "empty value",
			kv:   &memtable.KV{Key: []byte("k"), Value: memtable.Present(nil)},
			line: "PUT \"k\"=\"\"\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			line := encodeRecord(test.kv)
			assert.Equal(t, test.line, string(line))

			kv, err := decodeRecord(line[:len(line)-1])
			require.NoError(t, err)
			assert.Equal(t, test.kv.Key, kv.Key)
			assert.Equal(t, test.kv.Value.Tombstone, kv.Value.Tombstone)
			assert.Equal(t, test.kv.Value.Data, kv.Value.Data)
		})
	}

	for _, bad := range []string{"", "GET \"k\"", "PUT \"k\"", "PUT \"k\"=", "PUT k=v", "DEL \"k\" x", "PUT \"k\"=\"v\"x"} {
		_, err := decodeRecord([]byte(bad))
		assert.ErrorIs(t, err, ErrCorruptedWAL, bad)
	}
}

func Test_WAL_TornTail(t *testing.T) {
	file := path.Join(t.TempDir(), "test.wal")
	walWriter, err := NewWALWriter(file)
	require.NoError(t, err)
	defer walWriter.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, walWriter.Write(&memtable.KV{
			Key:   []byte(fmt.Sprintf("k%d", i)),
			Value: memtable.Present([]byte(fmt.Sprintf("v%d", i))),
		}))
	}
	goodSize, err := walWriter.Size()
	require.NoError(t, err)

	// 模拟进程在写入过程中被杀死
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte("PUT \"k3\"=\"v"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	kvs, validSize, err := ReadFile(file)
	assert.ErrorIs(t, err, ErrTornTail)
	assert.Len(t, kvs, 3)
	assert.Equal(t, goodSize, validSize)

	// 截断后继续追加，日志恢复完整
	require.NoError(t, walWriter.Truncate(validSize))
	require.NoError(t, walWriter.Write(&memtable.KV{Key: []byte("k4"), Value: memtable.Deleted()}))

	kvs, _, err = ReadFile(file)
	require.NoError(t, err)
	require.Len(t, kvs, 4)
	assert.Equal(t, []byte("k4"), kvs[3].Key)
	assert.True(t, kvs[3].Value.Tombstone)
}

func Test_WAL_Corrupted(t *testing.T) {
	file := path.Join(t.TempDir(), "test.wal")
	content := "PUT \"a\"=\"1\"\ngarbage\nPUT \"b\"=\"2\"\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	_, _, err := ReadFile(file)
	assert.ErrorIs(t, err, ErrCorruptedWAL)

	// 无法解析的记录位于尾部时按不完整记录处理
	content = "PUT \"a\"=\"1\"\ngarbage\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	kvs, validSize, err := ReadFile(file)
	assert.ErrorIs(t, err, ErrTornTail)
	assert.Len(t, kvs, 1)
	assert.Equal(t, int64(len("PUT \"a\"=\"1\"\n")), validSize)
}

func Test_WAL_ClearAndMissing(t *testing.T) {
	file := path.Join(t.TempDir(), "test.wal")

	kvs, size, err := ReadFile(file)
	require.NoError(t, err)
	assert.Empty(t, kvs)
	assert.Zero(t, size)

	walWriter, err := NewWALWriter(file)
	require.NoError(t, err)
	defer walWriter.Close()

	require.NoError(t, walWriter.Write(&memtable.KV{Key: []byte("a"), Value: memtable.Present([]byte("1"))}))
	require.NoError(t, walWriter.Clear())

	kvs, _, err = ReadFile(file)
	require.NoError(t, err)
	assert.Empty(t, kvs)

	// 清空之后的写入从文件头开始
	require.NoError(t, walWriter.Write(&memtable.KV{Key: []byte("b"), Value: memtable.Present([]byte("2"))}))
	kvs, _, err = ReadFile(file)
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.Equal(t, []byte("b"), kvs[0].Key)
}
