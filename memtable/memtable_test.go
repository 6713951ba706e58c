package memtable

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MemTable(t *testing.T) {
	constructors := map[string]MemTableConstructor{
		"skiplist": NewSkiplist,
		"btree":    NewBTree,
	}

	for name, constructor := range constructors {
		t.Run(name, func(t *testing.T) {
			table := constructor()
			table.Put([]byte("a"), Present([]byte("b")))
			table.Put([]byte("a"), Present([]byte("c")))
			table.Put([]byte("ab"), Present([]byte("aa")))
			table.Put([]byte("abc"), Present([]byte("aaa")))
			table.Put([]byte("bc"), Present([]byte("bbb")))
			table.Put([]byte("ab"), Deleted())

			val, ok := table.Get([]byte("a"))
			assert.True(t, ok)
			assert.Equal(t, []byte("c"), val.Data)

			val, ok = table.Get([]byte("ab"))
			assert.True(t, ok)
			assert.True(t, val.Tombstone)

			_, ok = table.Get([]byte("bcd"))
			assert.False(t, ok)

			assert.Equal(t, 4, table.EntriesCnt())
			// a:c + ab:<tombstone> + abc:aaa + bc:bbb
			assert.Equal(t, 2+2+6+5, table.Size())

			kvs := table.All()
			require.Len(t, kvs, 4)
			assert.Equal(t, []byte("a"), kvs[0].Key)
			assert.Equal(t, []byte("ab"), kvs[1].Key)
			assert.True(t, kvs[1].Value.Tombstone)
			assert.Equal(t, []byte("abc"), kvs[2].Key)
			assert.Equal(t, []byte("bc"), kvs[3].Key)
			assert.Equal(t, []byte("bbb"), kvs[3].Value.Data)
		})
	}
}

func Test_MemTable_Order(t *testing.T) {
	for _, constructor := range []MemTableConstructor{NewSkiplist, NewBTree} {
		table := constructor()
		for i := 999; i >= 0; i-- {
			table.Put([]byte(fmt.Sprintf("key%04d", i)), Present([]byte{byte(i)}))
		}

		kvs := table.All()
		require.Len(t, kvs, 1000)
		for i, kv := range kvs {
			assert.Equal(t, fmt.Sprintf("key%04d", i), string(kv.Key))
		}
	}
}

func Test_Value(t *testing.T) {
	assert.Equal(t, []byte{}, Present(nil).Data)
	assert.False(t, Present(nil).Tombstone)
	assert.True(t, Deleted().Tombstone)
	assert.Equal(t, 0, Deleted().Len())
	// 与删除标记同名的字符串依然是真实数据
	assert.False(t, Present([]byte("__TOMBSTONE__")).Tombstone)
}

func Test_Buffer(t *testing.T) {
	buf := NewBuffer(3, NewSkiplist)

	key := []byte("k1")
	buf.Put(key, Present([]byte("v1")))
	// 调用方复用 buffer 不影响已写入的数据
	key[1] = '9'

	v, ok := buf.Get([]byte("k1"))
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	buf.Put([]byte("k2"), Deleted())
	_, ok = buf.Get([]byte("k2"))
	assert.False(t, ok)
	assert.True(t, buf.ContainsKey([]byte("k2")))
	assert.False(t, buf.ContainsKey([]byte("k3")))

	raw, ok := buf.Lookup([]byte("k2"))
	assert.True(t, ok)
	assert.True(t, raw.Tombstone)

	assert.False(t, buf.IsFull())
	buf.Put([]byte("k3"), Present(nil))
	assert.True(t, buf.IsFull())

	// 落盘失败，数据保持不变
	err := buf.Flush(func(kvs []*KV) error {
		return errors.New("disk full")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, buf.Len())

	var flushed []*KV
	require.NoError(t, buf.Flush(func(kvs []*KV) error {
		flushed = kvs
		return nil
	}))
	assert.Equal(t, 0, buf.Len())
	assert.False(t, buf.IsFull())
	require.Len(t, flushed, 3)
	assert.Equal(t, []byte("k1"), flushed[0].Key)
	assert.True(t, flushed[1].Value.Tombstone)
	assert.Equal(t, []byte{}, flushed[2].Value.Data)
}
