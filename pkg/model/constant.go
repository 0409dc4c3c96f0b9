package model

import "strconv"

// Levels are the SNP distance thresholds of the cluster hierarchy,
// finest first. A sample's SNP address is its cluster id at each one.
var Levels = [7]int{0, 5, 10, 25, 50, 100, 250}

// NofLevels is the width of a SNP address.
const NofLevels = len(Levels)

// DefaultZScoreCutoff rejects a candidate whose mean distance sits more
// than this many standard deviations above the cluster mean.
const DefaultZScoreCutoff = 1.75

// tcol returns the sample_clusters column name for a level. Levels come
// from the fixed list above, never from user input.
func tcol(level int) string {
	return "t" + strconv.Itoa(level)
}

func tmeanCol(level int) string {
	return tcol(level) + "_mean"
}

// levelIndex returns the position of a threshold in Levels, -1 if it is
// not one of them.
func levelIndex(level int) int {
	for i, l := range Levels {
		if l == level {
			return i
		}
	}
	return -1
}

// closestLevel returns the finest threshold that still contains the
// given distance, false when the distance is beyond the coarsest one.
func closestLevel(dist int) (int, bool) {
	for _, l := range Levels {
		if dist <= l {
			return l, true
		}
	}
	return 0, false
}
