package util

import "time"

// 执行 fn，失败后间隔 backoff 重试，至多执行 attempts 次. 返回最后一次的错误
func Retry(attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(backoff)
		}
	}
	return err
}
