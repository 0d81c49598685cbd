package feature

import (
	"strconv"
	"time"

	"github.com/pithecene-io/assay/types"
)

// FeatureSet holds the derived behavioral features for one event. It is a
// pure function of (event, window, now); see Compute.
type FeatureSet struct {
	TxnsLast5m       int
	TxnsLast1h       int
	TxnsLast24h      int
	AvgAmount1h      float64
	MaxAmount24h     float64
	UniqueDevices24h int
	UniqueIPs24h     int
	AmountZScore     float64
	MerchantVel1h    int
	DeviceChurn24h   int
	IPChanges24h     int
}

// Compute derives the behavioral features for event against its user's
// window. The event must already be in the window (it is the newest entry),
// so it participates in every count and closes the churn traversal.
func Compute(event *types.TransactionEvent, w *Window, now time.Time) FeatureSet {
	events5m := w.Recent(Horizon5m, now)
	events1h := w.Recent(Horizon1h, now)
	events24h := w.Recent(Horizon24h, now)

	var fs FeatureSet
	fs.TxnsLast5m = len(events5m)
	fs.TxnsLast1h = len(events1h)
	fs.TxnsLast24h = len(events24h)

	if len(events1h) > 0 {
		var sum float64
		for _, e := range events1h {
			sum += e.Amount
		}
		fs.AvgAmount1h = sum / float64(len(events1h))
	}
	for _, e := range events24h {
		if e.Amount > fs.MaxAmount24h {
			fs.MaxAmount24h = e.Amount
		}
	}

	devices := make(map[string]struct{})
	ips := make(map[string]struct{})
	for _, e := range events24h {
		devices[e.DeviceID] = struct{}{}
		ips[e.IP] = struct{}{}
	}
	fs.UniqueDevices24h = len(devices)
	fs.UniqueIPs24h = len(ips)

	// Cumulative mean stands in for sigma. Downstream thresholds are tuned
	// to this formulation; do not substitute a true standard deviation.
	if mean := w.MeanAmount(); mean > 0 {
		fs.AmountZScore = (event.Amount - mean) / mean
	}

	for _, e := range events1h {
		if e.MerchantID == event.MerchantID {
			fs.MerchantVel1h++
		}
	}

	// Adjacent-pair disagreements oldest to newest; the current event is the
	// final element of the traversal.
	for i := 1; i < len(events24h); i++ {
		if events24h[i].DeviceID != events24h[i-1].DeviceID {
			fs.DeviceChurn24h++
		}
		if events24h[i].IP != events24h[i-1].IP {
			fs.IPChanges24h++
		}
	}

	return fs
}

// Fields renders the feature set as snapshot fields. Counts are integers;
// continuous values use shortest round-trip formatting.
func (fs FeatureSet) Fields() map[string]string {
	return map[string]string{
		"txns_last_5m":         strconv.Itoa(fs.TxnsLast5m),
		"txns_last_1h":         strconv.Itoa(fs.TxnsLast1h),
		"txns_last_24h":        strconv.Itoa(fs.TxnsLast24h),
		"avg_amount_1h":        types.FormatFloat(fs.AvgAmount1h),
		"max_amount_24h":       types.FormatFloat(fs.MaxAmount24h),
		"unique_devices_24h":   strconv.Itoa(fs.UniqueDevices24h),
		"unique_ips_24h":       strconv.Itoa(fs.UniqueIPs24h),
		"amount_zscore":        types.FormatFloat(fs.AmountZScore),
		"merchant_velocity_1h": strconv.Itoa(fs.MerchantVel1h),
		"device_churn_24h":     strconv.Itoa(fs.DeviceChurn24h),
		"ip_changes_24h":       strconv.Itoa(fs.IPChanges24h),
	}
}
