package economics

import (
	"math/big"
	"strconv"
	"strings"
)

var ethDenominations = []struct {
	name     string
	decimals int64
}{
	{"wei", 0},
	{"gwei", 9},
	{"ETH", 18},
}

// PrettifyEth renders a wei amount in whichever of wei, gwei or ETH gives the
// shortest text. Ties go to the lexically smaller text, then to ETH over gwei over wei.
func PrettifyEth(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	best, bestDenom := "", ""
	for _, d := range ethDenominations {
		text := decimalString(wei, d.decimals)
		if best == "" || better(text, d.name, best, bestDenom) {
			best, bestDenom = text, d.name
		}
	}
	return best + " " + bestDenom
}

func better(text, denom, best, bestDenom string) bool {
	if len(text) != len(best) {
		return len(text) < len(best)
	}
	if text != best {
		return text < best
	}
	return denomRank(denom) < denomRank(bestDenom)
}

func denomRank(name string) int {
	switch name {
	case "ETH":
		return 0
	case "gwei":
		return 1
	}
	return 2
}

// decimalString formats v / 10^decimals with as few digits as the value needs.
// Fractions whose leading digit sits more than six places after the point use
// exponent notation, e.g. "1.5E-15".
func decimalString(v *big.Int, decimals int64) string {
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	digits := abs.String()
	exp := -decimals

	if exp < 0 && abs.Sign() != 0 {
		// drop trailing zeros until the value is an integer or no zeros remain
		for exp < 0 && strings.HasSuffix(digits, "0") {
			digits = digits[:len(digits)-1]
			exp++
		}
	}
	if abs.Sign() == 0 || exp == 0 {
		if abs.Sign() == 0 {
			digits = "0"
		}
		return sign(neg) + digits
	}

	adjusted := exp + int64(len(digits)) - 1
	if adjusted < -6 {
		mantissa := digits[:1]
		if len(digits) > 1 {
			mantissa += "." + digits[1:]
		}
		return sign(neg) + mantissa + "E" + strconv.FormatInt(adjusted, 10)
	}

	point := int64(len(digits)) + exp
	if point <= 0 {
		return sign(neg) + "0." + strings.Repeat("0", int(-point)) + digits
	}
	return sign(neg) + digits[:point] + "." + digits[point:]
}

func sign(neg bool) string {
	if neg {
		return "-"
	}
	return ""
}
