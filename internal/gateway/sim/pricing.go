package sim

import "math"

const minYears = 1.0 / 365

type greeks struct {
	price, delta, gamma, vega, theta float64
}

func normCDF(x float64) float64 { return 0.5 * (1 + math.Erf(x/math.Sqrt2)) }

func normPDF(x float64) float64 { return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi) }

// blackScholes prices a European option. Vega is per vol point and theta
// per calendar day.
func blackScholes(call bool, spot, strike, years, vol, rate float64) greeks {
	if years < minYears {
		years = minYears
	}
	sqrtT := math.Sqrt(years)
	d1 := (math.Log(spot/strike) + (rate+vol*vol/2)*years) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT
	disc := strike * math.Exp(-rate*years)

	g := greeks{
		gamma: normPDF(d1) / (spot * vol * sqrtT),
		vega:  spot * normPDF(d1) * sqrtT / 100,
	}
	decay := -spot * normPDF(d1) * vol / (2 * sqrtT)
	if call {
		g.price = spot*normCDF(d1) - disc*normCDF(d2)
		g.delta = normCDF(d1)
		g.theta = (decay - rate*disc*normCDF(d2)) / 365
	} else {
		g.price = disc*normCDF(-d2) - spot*normCDF(-d1)
		g.delta = normCDF(d1) - 1
		g.theta = (decay + rate*disc*normCDF(-d2)) / 365
	}
	return g
}

// smile skews vol upward away from the money.
func smile(vol, spot, strike float64) float64 {
	m := math.Log(strike / spot)
	return vol * (1 + 2*m*m - 0.3*m)
}

func roundTo(v, step float64) float64 {
	return math.Round(v/step) * step
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}
