package metrics

// SyncDurationBuckets covers graph sync runs from seconds up to the one hour timeout.
var SyncDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 2700, 3600}

// HTTPDurationBuckets defines latency buckets for ops endpoint requests.
var HTTPDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
