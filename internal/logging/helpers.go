package logging

import (
	"log/slog"
	"time"
)

// Common field helpers for consistent structured logging

// Duration logs duration in milliseconds
func Duration(name string, d time.Duration) slog.Attr {
	return slog.Int64(name+"_ms", d.Milliseconds())
}

// Err creates error field
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Count creates count field
func Count(name string, count int) slog.Attr {
	return slog.Int(name+"_count", count)
}

// Hostname creates hostname field
func Hostname(hostname string) slog.Attr {
	return slog.String("hostname", hostname)
}

// IP creates IP address field
func IP(ip string) slog.Attr {
	return slog.String("ip", ip)
}

// File creates file path field
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Query creates query operation field
func Query(operation string) slog.Attr {
	return slog.String("query", operation)
}

// BatchSize creates batch size field
func BatchSize(size int) slog.Attr {
	return slog.Int("batch_size", size)
}

// Worker creates worker ID field
func Worker(id int) slog.Attr {
	return slog.Int("worker_id", id)
}

// Server creates a server address field
func Server(address string) slog.Attr {
	return slog.String("server", address)
}

// Path creates a catalog path field
func Path(path string) slog.Attr {
	return slog.String("path", path)
}
