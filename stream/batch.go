package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// EncodeBatch serialises changes as newline-delimited JSON and gzips the result.
func EncodeBatch(changes []ChangeEvent) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := json.NewEncoder(zw)
	for i, c := range changes {
		if err := enc.Encode(c); err != nil {
			return nil, fmt.Errorf("encode change %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBatch reverses EncodeBatch.
func DecodeBatch(data []byte) ([]ChangeEvent, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress batch: %w", err)
	}
	defer zr.Close()

	var changes []ChangeEvent
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var c ChangeEvent
		if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
			return nil, fmt.Errorf("decode change %d: %w", len(changes), err)
		}
		changes = append(changes, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return changes, nil
}

// Chunk splits items into consecutive batches of at most size items.
// The last batch holds the remainder; no batch is empty.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var batches [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		batches = append(batches, items[:n:n])
		items = items[n:]
	}
	return batches
}
