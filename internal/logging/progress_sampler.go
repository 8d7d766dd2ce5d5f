package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs. It emits when the
// processing step or file changes, or when the percentage crosses into a new
// bucket.
type ProgressSampler struct {
	bucketSize float64
	lastKey    string
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percent (default 10).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress update is worth a log line. A negative
// percent means the server did not report one.
func (s *ProgressSampler) ShouldLog(step, file string, percent float64) bool {
	if s == nil {
		return true
	}
	key := strings.TrimSpace(step) + "\x00" + strings.TrimSpace(file)
	emit := false
	if key != s.lastKey {
		s.lastKey = key
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		bucket := int(percent / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state (e.g. when a new job starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastKey = ""
	s.lastBucket = -1
}
