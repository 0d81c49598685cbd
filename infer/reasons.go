package infer

import "strconv"

// Reason codes, ordered highest priority first.
var reasonPriority = []string{
	"high_velocity_5m",
	"unusual_amount",
	"high_device_churn",
	"frequent_ip_changes",
	"high_merchant_velocity",
	"high_velocity_1h",
}

const maxReasons = 3

// Reasons evaluates the behavioral rules against a feature snapshot and
// returns the top matching codes by priority, at most three. With no match
// it returns the single no_significant_indicators code.
func Reasons(fields map[string]string) []string {
	get := func(key string) float64 {
		v, err := strconv.ParseFloat(fields[key], 64)
		if err != nil {
			return 0
		}
		return v
	}

	fired := map[string]bool{
		"high_velocity_5m":       get("txns_last_5m") > 5,
		"high_velocity_1h":       get("txns_last_1h") > 20,
		"unusual_amount":         get("avg_amount_1h") > 0 && get("amount_zscore") > 3.0,
		"high_device_churn":      get("device_churn_24h") > 2,
		"frequent_ip_changes":    get("ip_changes_24h") > 3,
		"high_merchant_velocity": get("merchant_velocity_1h") > 5,
	}

	var reasons []string
	for _, code := range reasonPriority {
		if fired[code] {
			reasons = append(reasons, code)
			if len(reasons) == maxReasons {
				break
			}
		}
	}
	if len(reasons) == 0 {
		return []string{"no_significant_indicators"}
	}
	return reasons
}
