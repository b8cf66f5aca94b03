package main

import (
	"fmt"

	"towline/internal/tasks"
)

func formatBytes(value int64) string {
	const unit = 1024
	if value < unit {
		return fmt.Sprintf("%d B", value)
	}
	div, exp := int64(unit), 0
	for n := value / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(value)/float64(div), "KMGTPE"[exp])
}

func formatProgress(task *tasks.Task) string {
	if task.SizeTotal == nil || *task.SizeTotal <= 0 {
		if task.SizeTransferred == 0 {
			return "-"
		}
		return formatBytes(task.SizeTransferred)
	}
	percent := float64(task.SizeTransferred) / float64(*task.SizeTotal) * 100
	return fmt.Sprintf("%s / %s (%.0f%%)", formatBytes(task.SizeTransferred), formatBytes(*task.SizeTotal), percent)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
