package numerator

// CollectUsed parses raw identifier values read from the store and adds every
// recognised suffix to used. Nil entries and values that do not match f are
// skipped without error; the number of skipped values is returned so callers
// can log or assert on it.
func CollectUsed(f Format, values []*string, used UsedSet) (skipped int) {
	for _, v := range values {
		if v == nil {
			skipped++
			continue
		}
		n, ok := f.Parse(*v)
		if !ok {
			skipped++
			continue
		}
		used.Add(n)
	}
	return skipped
}
