package crontab

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

var errStep = errors.New("step must be a positive integer")

// ParseField expands a single crontab field into the sorted, duplicate-free
// set of integers it selects within [low, high].
//
// Supported terms, joined by commas: "*", "a-b", "n", each optionally
// followed by "/step". Ranges are clamped to [low, high] and bare values
// outside it are dropped, matching permissive crontab parsers. A step on a
// bare value is accepted and ignored.
func ParseField(text string, low, high int) ([]int, error) {
	var result []int
	for _, term := range strings.Split(text, ",") {
		values, err := parseTerm(term, low, high)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}

func parseTerm(term string, low, high int) ([]int, error) {
	step := 1
	if slash := strings.LastIndexByte(term, '/'); slash > 0 {
		n, err := atoi(term[slash+1:])
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, &ParseError{Value: term, Err: errStep}
		}
		step = n
		term = term[:slash]
	}

	if term == "*" {
		return span(low, high, step), nil
	}

	// A leading '-' is a sign, not a range separator.
	if dash := strings.IndexByte(term, '-'); dash > 0 {
		lo, err := atoi(term[:dash])
		if err != nil {
			return nil, err
		}
		hi, err := atoi(term[dash+1:])
		if err != nil {
			return nil, err
		}
		return span(max(low, lo), min(high, hi), step), nil
	}

	v, err := atoi(term)
	if err != nil {
		return nil, err
	}
	if v < low || v > high {
		return nil, nil
	}
	return []int{v}, nil
}

// span returns lo, lo+step, ... up to and including hi. Empty when lo > hi.
func span(lo, hi, step int) []int {
	if lo > hi {
		return nil
	}
	out := make([]int, 0, (hi-lo)/step+1)
	for v := lo; ; v += step {
		out = append(out, v)
		// Compare before adding so a huge step cannot wrap v past hi.
		if hi-v < step {
			break
		}
	}
	return out
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ParseError{Value: s, Err: errors.Unwrap(err)}
	}
	return n, nil
}
