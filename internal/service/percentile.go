package service

import "fmt"

// maxPercentile caps results when a word count clears the top tabulated row.
const maxPercentile = 99.0

// FindPercentile computes a CDI percentile by reverse scan and linear
// interpolation over a gender-specific lookup table.
//
// The table's first row holds ages in months (ascending) after a sentinel
// cell; the first column of the remaining rows holds percentile ranks in
// descending order. Cell (i, j) is the spoken-word count marking the lower
// bound of rank i at age column j. Ages outside the tabulated range clamp
// to the nearest column.
func FindPercentile(entries [][]float64, targetWords int, ageMonths float64, maxWords int) (float64, error) {
	if len(entries) < 2 || len(entries[0]) < 2 {
		return 0, fmt.Errorf("percentile table needs a header row and at least one rank row")
	}

	// Sentinel-flanked descending rank list.
	percentiles := make([]float64, 0, len(entries)+1)
	percentiles = append(percentiles, 0)
	for _, row := range entries[1:] {
		percentiles = append(percentiles, row[0])
	}
	percentiles = append(percentiles, 0)

	firstMonth := entries[0][1]
	monthIndex := int(ageMonths - firstMonth + 1)
	if monthIndex < 1 {
		monthIndex = 1
	}
	if last := len(entries[0]) - 1; monthIndex > last {
		monthIndex = last
	}

	words := make([]float64, 0, len(entries)+1)
	for _, row := range entries {
		if monthIndex >= len(row) {
			return 0, fmt.Errorf("percentile table row shorter than header")
		}
		words = append(words, row[monthIndex])
	}
	words = append(words, 0)
	words[0] = float64(maxWords)

	target := float64(targetWords)
	index := len(words) - 1
	for target > words[index] {
		index--
	}

	if index == 0 {
		return maxPercentile, nil
	}

	upper := words[index]
	lower := upper - 1
	if index+1 < len(words) {
		lower = words[index+1]
	}

	pUpper := percentiles[index]
	pLower := pUpper - 1
	if index+1 < len(percentiles) {
		pLower = percentiles[index+1]
	}

	if upper == lower {
		return clampPercentile(pUpper), nil
	}

	slope := (pUpper - pLower) / (upper - lower)
	return clampPercentile(slope*(target-lower) + pLower), nil
}

func clampPercentile(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > maxPercentile {
		return maxPercentile
	}
	return value
}
