package utils

// ToStringSlice converts a decoded JSON array (or an already typed []string)
// into a []string, dropping any non-string entries.
func ToStringSlice(v any) []string {
	stringSlice := make([]string, 0)
	switch slice := v.(type) {
	case []string:
		stringSlice = append(stringSlice, slice...)
	case []any:
		for _, v := range slice {
			if s, ok := v.(string); ok {
				stringSlice = append(stringSlice, s)
			}
		}
	}
	return stringSlice
}
