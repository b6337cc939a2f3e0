// disk_usage.go — информация о дисковом пространстве storage root.
// Платформозависимый код для Unix-подобных систем.
package filestore

import (
	"fmt"
	"syscall"
)

// DiskUsage — состояние файловой системы, на которой лежит storage root.
type DiskUsage struct {
	// TotalBytes — общий объём файловой системы
	TotalBytes int64 `json:"total_bytes"`
	// UsedBytes — занятый объём
	UsedBytes int64 `json:"used_bytes"`
	// AvailableBytes — доступный объём
	AvailableBytes int64 `json:"available_bytes"`
}

// DiskUsage возвращает информацию о дисковом пространстве storage root.
func (fs *FileStore) DiskUsage() (*DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(fs.root, &stat); err != nil {
		return nil, fmt.Errorf("ошибка statfs %s: %w", fs.root, err)
	}

	total := int64(stat.Blocks) * int64(stat.Bsize)
	available := int64(stat.Bavail) * int64(stat.Bsize)

	return &DiskUsage{
		TotalBytes:     total,
		UsedBytes:      total - available,
		AvailableBytes: available,
	}, nil
}
