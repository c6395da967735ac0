// Package ean generates and validates EAN-13 barcodes.
package ean

import "math/rand"

// Generate returns a random 13-digit EAN-13 code with a valid check digit.
func Generate() string {
	digits := make([]int, 13)
	for i := 0; i < 12; i++ {
		digits[i] = rand.Intn(10)
	}
	digits[12] = checkDigit(digits[:12])

	out := make([]byte, 13)
	for i, d := range digits {
		out[i] = byte('0' + d)
	}
	return string(out)
}

// Valid reports whether code is a syntactically valid EAN-13 barcode.
func Valid(code string) bool {
	if len(code) != 13 {
		return false
	}
	digits := make([]int, 13)
	for i := 0; i < 13; i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
		digits[i] = int(code[i] - '0')
	}
	return checkDigit(digits[:12]) == digits[12]
}

// checkDigit computes the EAN-13 check digit: odd positions (1-based) weigh 1,
// even positions weigh 3.
func checkDigit(digits []int) int {
	var oddSum, evenSum int
	for i, d := range digits {
		if i%2 == 0 {
			oddSum += d
		} else {
			evenSum += d
		}
	}
	return (10 - (oddSum+evenSum*3)%10) % 10
}
