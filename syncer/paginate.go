package syncer

import "log"

// Page is one fetched page of a continuation-key paginated endpoint.
type Page[T any] struct {
	Records []T
	// NextKey is the continuation key for the following page.
	NextKey string
	// More reports whether the server claims further pages exist.
	More bool
}

// pageSlack extends the hard page-count bound beyond maxRecords/pageSize,
// independently of the repeated-key check.
const pageSlack = 3

// Paginate drains a paginated endpoint. It stops on a repeated
// continuation key, on an empty page while the server claims more, once
// maxRecords records are accumulated (truncating the excess), and in any
// case after maxRecords/pageSize+slack pages. Anomalies are logged, not
// errors: whatever was collected so far is returned.
func Paginate[T any](pageSize, maxRecords int, fetch func(key string) (Page[T], error)) ([]T, error) {
	if pageSize <= 0 {
		pageSize = 1
	}
	maxPages := maxRecords/pageSize + pageSlack
	seen := make(map[string]bool)
	var out []T
	key := ""
	for range maxPages {
		if seen[key] {
			log.Printf("pagination anomaly: continuation key %q seen twice, stopping with %d records", key, len(out))
			return out, nil
		}
		seen[key] = true

		page, err := fetch(key)
		if err != nil {
			return out, err
		}
		if len(page.Records) == 0 && page.More {
			log.Printf("pagination anomaly: empty page while server claims more, stopping with %d records", len(out))
			return out, nil
		}
		out = append(out, page.Records...)
		if len(out) >= maxRecords {
			if len(out) > maxRecords {
				log.Printf("pagination: %d records exceed the %d limit, truncating", len(out), maxRecords)
				out = out[:maxRecords]
			}
			return out, nil
		}
		if !page.More {
			return out, nil
		}
		key = page.NextKey
	}
	log.Printf("pagination: hard bound of %d pages reached, stopping with %d records", maxPages, len(out))
	return out, nil
}
