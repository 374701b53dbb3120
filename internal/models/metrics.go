package models

import "time"

// SystemMetrics is the aggregated snapshot served by the metrics endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	IngestRuns               uint64    `json:"ingestRuns"`
	IngestFailures           uint64    `json:"ingestFailures"`
	TimetablesRepaired       uint64    `json:"timetablesRepaired"`
	SectionsEvicted          uint64    `json:"sectionsEvicted"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
