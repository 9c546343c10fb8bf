package file

import (
	"strconv"
	"strings"
)

const (
	MinRating = 1
	MaxRating = 5
)

func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// AverageRating is the mean of all ratings. ok is false when nobody rated yet.
func AverageRating(ratings map[string]int) (avg float64, ok bool) {
	if len(ratings) == 0 {
		return 0, false
	}
	var sum int
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings)), true
}

// DisplayAverage is the average rounded to one decimal, 0 when unrated.
func DisplayAverage(ratings map[string]int) float64 {
	avg, ok := AverageRating(ratings)
	if !ok {
		return 0
	}
	return roundTenths(avg)
}

// roundTenths rounds the exact binary value of x (x >= 0) to one decimal, ties up.
// 29/20 is stored slightly below 1.45 and gives 1.4, while 5/4 is exact and gives 1.3.
func roundTenths(x float64) float64 {
	// 60 digits print any double in the rating range exactly
	s := strconv.FormatFloat(x, 'f', 60, 64)
	dot := strings.IndexByte(s, '.')
	tenths, err := strconv.ParseInt(s[:dot]+s[dot+1:dot+2], 10, 64)
	if err != nil {
		return 0
	}
	if s[dot+2] >= '5' {
		tenths++
	}
	return float64(tenths) / 10
}

// ApplyRating records the rating of uid on a copy of ratings, overwriting any previous one.
// changed is false when uid already gave this exact rating.
func ApplyRating(ratings map[string]int, uid string, rating int) (updated map[string]int, avg float64, changed bool) {
	updated = make(map[string]int, len(ratings)+1)
	for k, v := range ratings {
		updated[k] = v
	}
	prev, rated := updated[uid]
	updated[uid] = rating
	avg, _ = AverageRating(updated)
	return updated, avg, !rated || prev != rating
}
