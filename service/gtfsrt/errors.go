package gtfsrt

import "errors"

// 数据集级致命错误，中止整个运行并交由任务队列重试
var (
	// ErrNoRealtimeResources 数据集没有可用的实时资源
	ErrNoRealtimeResources = errors.New("数据集没有可用的实时资源")
	// ErrNoStaticResource 数据集没有唯一有效的静态资源
	ErrNoStaticResource = errors.New("数据集没有唯一有效的静态资源")
	// ErrNoSnapshotAvailable 静态资源没有可用的历史快照
	ErrNoSnapshotAvailable = errors.New("静态资源没有可用的历史快照")
)
