package solver

// FrequencyCounter tallies weighted occurrence counts per key. The priority
// heuristics mix integer event counts with fractional estimated masses, so
// counts are float64.
type FrequencyCounter[K comparable] struct {
	counts map[K]float64
	total  float64
}

// NewFrequencyCounter creates a counter with every key preset to zero.
func NewFrequencyCounter[K comparable](keys []K) *FrequencyCounter[K] {
	c := &FrequencyCounter[K]{counts: make(map[K]float64, len(keys))}
	for _, k := range keys {
		c.counts[k] = 0
	}
	return c
}

// Increment adds one occurrence of the key.
func (c *FrequencyCounter[K]) Increment(key K) {
	c.Add(key, 1)
}

// Add adds an arbitrary (possibly fractional) mass to the key.
func (c *FrequencyCounter[K]) Add(key K, v float64) {
	c.counts[key] += v
	c.total += v
}

// Count returns the absolute frequency of the key.
func (c *FrequencyCounter[K]) Count(key K) float64 {
	return c.counts[key]
}

// Total returns the sum over all keys.
func (c *FrequencyCounter[K]) Total() float64 {
	return c.total
}
