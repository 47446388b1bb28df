package rules

import (
	"regexp"
	"sync"
)

// compiledCache 编译结果缓存，编译失败也缓存，避免对同一非法模式反复编译
type compiledCache struct {
	mu  sync.RWMutex
	ok  map[string]*regexp.Regexp
	bad map[string]error
}

func newCompiledCache() *compiledCache {
	return &compiledCache{
		ok:  make(map[string]*regexp.Regexp),
		bad: make(map[string]error),
	}
}

func (c *compiledCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, hit := c.ok[pattern]
	err, badHit := c.bad[pattern]
	c.mu.RUnlock()
	if hit {
		return re, nil
	}
	if badHit {
		return nil, err
	}

	re, err = regexp.Compile(pattern)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.bad[pattern] = err
		return nil, err
	}
	c.ok[pattern] = re
	return re, nil
}
