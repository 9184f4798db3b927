package availability

import (
	"time"

	"github.com/curbdata/parking-aggregator/internal/domain"
)

// Predict estimates the chance of finding street parking at the given local
// time. The bands encode typical urban demand: commute peaks are hostile,
// nights are easy, weekends are busy through the afternoon. It is a
// heuristic fallback for when live evidence is thin, not a forecast.
func Predict(at time.Time) domain.Prediction {
	hour := at.Hour()
	day := at.Weekday()
	weekend := day == time.Saturday || day == time.Sunday

	switch {
	case hour >= 22 || hour < 6:
		return domain.Prediction{
			Probability: 0.85,
			Tier:        "good",
			Note:        "overnight demand is low",
		}
	case weekend && hour >= 10 && hour < 18:
		return domain.Prediction{
			Probability: 0.40,
			Tier:        "fair",
			Note:        "weekend daytime fills curbs near commercial blocks",
		}
	case weekend:
		return domain.Prediction{
			Probability: 0.55,
			Tier:        "fair",
			Note:        "weekend off-peak turnover keeps spots opening up",
		}
	case (hour >= 7 && hour < 10) || (hour >= 16 && hour < 19):
		return domain.Prediction{
			Probability: 0.25,
			Tier:        "poor",
			Note:        "commute peak, expect competition for street parking",
		}
	case hour >= 19:
		return domain.Prediction{
			Probability: 0.60,
			Tier:        "fair",
			Note:        "evening demand eases after the dinner rush",
		}
	default:
		return domain.Prediction{
			Probability: 0.45,
			Tier:        "fair",
			Note:        "weekday midday turnover keeps some spots open",
		}
	}
}
