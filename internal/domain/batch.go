package domain

// Chunk is a run of samples that is encoded and sent as one request.
type Chunk struct {
	Samples []Sample
}

// Size returns the number of samples in the chunk.
func (c Chunk) Size() int {
	return len(c.Samples)
}

// Empty returns true if the chunk has no samples.
func (c Chunk) Empty() bool {
	return len(c.Samples) == 0
}

// Split cuts samples into chunks of at most size samples, preserving order.
// A non-positive size yields a single chunk.
func Split(samples []Sample, size int) []Chunk {
	if len(samples) == 0 {
		return nil
	}
	if size <= 0 || size >= len(samples) {
		return []Chunk{{Samples: samples}}
	}

	chunks := make([]Chunk, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		chunks = append(chunks, Chunk{Samples: samples[start:end]})
	}
	return chunks
}
