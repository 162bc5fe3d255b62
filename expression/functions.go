package expression

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const secondsPerDay = 86400

// call dispatches a function by case-insensitive name. Unknown functions are 0.
func (p *parser) call(name string, args []float64) float64 {
	switch strings.ToUpper(name) {
	case "TODAY":
		return math.Floor(float64(p.now().UTC().Unix()) / secondsPerDay)

	case "MAX":
		if len(args) == 0 {
			return 0
		}
		result := args[0]
		for _, v := range args[1:] {
			result = math.Max(result, v)
		}
		return result

	case "MIN":
		if len(args) == 0 {
			return 0
		}
		result := args[0]
		for _, v := range args[1:] {
			result = math.Min(result, v)
		}
		return result

	case "SUM":
		return sum(args)

	case "AVG":
		if len(args) == 0 {
			return 0
		}
		return sum(args) / float64(len(args))

	case "ROUND":
		return roundWith(arg(args, 0), arg(args, 1), decimal.Decimal.Round)
	case "ROUNDUP":
		return roundWith(arg(args, 0), arg(args, 1), decimal.Decimal.RoundUp)
	case "ROUNDDOWN":
		return roundWith(arg(args, 0), arg(args, 1), decimal.Decimal.RoundDown)

	case "ABS":
		return math.Abs(arg(args, 0))

	case "IF":
		if arg(args, 0) != 0 {
			return arg(args, 1)
		}
		return arg(args, 2)

	case "DATEDIFF":
		return math.Abs(arg(args, 0) - arg(args, 1))

	case "YEAR":
		return float64(dayToTime(arg(args, 0)).Year())
	case "MONTH":
		return float64(dayToTime(arg(args, 0)).Month())
	case "DAY":
		return float64(dayToTime(arg(args, 0)).Day())

	case "POWER":
		return math.Pow(arg(args, 0), arg(args, 1))

	case "PMT":
		return pmt(arg(args, 0), arg(args, 1), arg(args, 2))

	default:
		return 0
	}
}

// arg returns the i-th argument, or 0 when the caller supplied fewer
func arg(args []float64, i int) float64 {
	if i < len(args) {
		return args[i]
	}
	return 0
}

func sum(args []float64) float64 {
	var total float64
	for _, v := range args {
		total += v
	}
	return total
}

// maxRoundPlaces bounds the places argument of the rounding functions.
// A float64 carries no digits beyond it and decimal rescaling is linear in |places|.
const maxRoundPlaces = 20

// roundWith rounds in decimal space so that 1.005 rounds like a spreadsheet would
func roundWith(v, places float64, round func(decimal.Decimal, int32) decimal.Decimal) float64 {
	if !finite(v) || !finite(places) {
		return v
	}
	places = math.Max(-maxRoundPlaces, math.Min(maxRoundPlaces, places))
	f, _ := round(decimal.NewFromFloat(v), int32(places)).Float64()
	return f
}

// pmt is the level payment that amortizes pv over nper periods at rate per period
func pmt(rate, nper, pv float64) float64 {
	if rate == 0 {
		if nper == 0 {
			return 0
		}
		return pv / nper
	}
	denominator := 1 - math.Pow(1+rate, -nper)
	if denominator == 0 {
		return 0
	}
	return rate * pv / denominator
}

func dayToTime(days float64) time.Time {
	if !finite(days) {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(int64(math.Floor(days))*secondsPerDay, 0).UTC()
}
