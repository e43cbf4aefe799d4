package utils

// Duplicates returns the values that occur more than once in slice, in order of their second occurrence.
func Duplicates[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	var dups []T
	for _, item := range slice {
		if _, ok := seen[item]; ok {
			dups = append(dups, item)
			continue
		}
		seen[item] = struct{}{}
	}
	return dups
}
