package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockNotAcquired 在等待时限内未能获取请求锁
var ErrLockNotAcquired = errors.New("请求正在被其他操作处理，请稍后重试")
