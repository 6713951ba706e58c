package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xiaoxuxiansheng/lsmkv"
)

const sampleSize = 10

func main() {
	dir := flag.String("dir", "./data", "Data directory")
	n := flag.Int("n", 10000, "Number of keys to insert")
	limit := flag.Int("limit", 1000, "Memtable entry limit")
	verbose := flag.Bool("v", false, "Print engine logs")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	if err := run(*dir, *n, *limit, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string, n, limit int, logger *zap.Logger) error {
	conf, err := lsmkv.NewConfig(dir,
		lsmkv.WithMemTableLimit(limit),
		lsmkv.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	store, err := lsmkv.NewStore(conf)
	if err != nil {
		return err
	}
	defer store.Close()

	// 批量写入
	for i := 0; i < n; i++ {
		if err = store.Put([]byte(fmt.Sprintf("key%d", i)), []byte(fmt.Sprintf("value%d", i))); err != nil {
			return err
		}
	}

	for _, i := range []int{42, 2048, 3499, 5000} {
		key := fmt.Sprintf("key%d", i)
		value, ok, err := store.Get([]byte(key))
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s (found: %v)\n", key, value, ok)
	}

	ok, err := store.ContainsKey([]byte("key42"))
	if err != nil {
		return err
	}
	fmt.Printf("Contains key42? %v\n", ok)

	size, err := store.Size()
	if err != nil {
		return err
	}
	fmt.Printf("Current size: %d\n", size)

	// 批量读取
	missing := 0
	for i := 0; i < n; i++ {
		if _, ok, err := store.Get([]byte(fmt.Sprintf("key%d", i))); err != nil {
			return err
		} else if !ok {
			missing++
		}
	}
	fmt.Printf("Missing keys: %d\n", missing)

	if err = store.PutAll(map[string][]byte{
		"alpha": []byte("a"),
		"beta":  []byte("b"),
		"gamma": []byte("c"),
	}); err != nil {
		return err
	}
	fmt.Println("After putAll:")
	for _, key := range []string{"alpha", "beta", "gamma"} {
		value, _, err := store.Get([]byte(key))
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", key, value)
	}

	if err = store.Delete([]byte("alpha")); err != nil {
		return err
	}
	if ok, err = store.ContainsKey([]byte("alpha")); err != nil {
		return err
	}
	fmt.Printf("After deleting alpha, contains alpha? %v\n", ok)

	keys, err := store.KeySet()
	if err != nil {
		return err
	}
	fmt.Println("Sample keys:")
	for i := 0; i < len(keys) && i < sampleSize; i++ {
		fmt.Printf("%s ", keys[i])
	}
	fmt.Println()

	entries, err := store.EntrySet()
	if err != nil {
		return err
	}
	fmt.Println("Sample entries:")
	for i := 0; i < len(entries) && i < sampleSize; i++ {
		fmt.Printf("%s = %s\n", entries[i].Key, entries[i].Value.Data)
	}

	stats, err := store.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Stats: %+v\n", stats)

	fmt.Println("Clearing...")
	if err = store.Clear(); err != nil {
		return err
	}
	if size, err = store.Size(); err != nil {
		return err
	}
	fmt.Printf("Size after clear: %d\n", size)
	return nil
}
