package progress

import "math"

// MaxCount is the largest completed count a store accepts; it matches the
// INTEGER columns of the SQL schemas.
const MaxCount = math.MaxInt32

// Percent returns round(100*completed/total) limited to 0..100.
// A non-positive total yields 0.
func Percent(completed, total int) int {
	switch {
	case total <= 0 || completed <= 0:
		return 0
	case completed >= total:
		return 100
	}
	p := int(math.Round(100 * float64(completed) / float64(total)))
	return Clamp(p, 100)
}

// Overall returns the rounded mean of the topics' progress, or 0 for no topics.
func Overall(topics []TopicProgress) int {
	if len(topics) == 0 {
		return 0
	}
	sum := 0
	for _, t := range topics {
		sum += t.Progress
	}
	return int(math.Round(float64(sum) / float64(len(topics))))
}

// Clamp limits n to [0, limit]. A negative limit is treated as 0.
func Clamp(n, limit int) int {
	if limit < 0 {
		limit = 0
	}
	switch {
	case n < 0:
		return 0
	case n > limit:
		return limit
	}
	return n
}
