package storage

import "fmt"

// Import copies every table of src into dst, preserving record order
func Import(dst *BoltStore, src *MemoryStore) (int, error) {
	count := 0
	for _, table := range src.Tables() {
		records, err := src.FindAll(table, All())
		if err != nil {
			return count, err
		}
		for _, r := range records {
			if err := dst.Insert(table, r); err != nil {
				return count, fmt.Errorf("failed to import %s record: %w", table, err)
			}
			count++
		}
	}
	return count, nil
}
