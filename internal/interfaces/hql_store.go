package interfaces

import "context"

// SharedHQLStore 多实例共享的 指纹 -> HQL 存储（进程内 LRU 之外的二级缓存）
type SharedHQLStore interface {
	// Get 未命中时返回 "", false, nil
	Get(ctx context.Context, fingerprint string) (string, bool, error)
	Set(ctx context.Context, fingerprint, hql string) error
}
