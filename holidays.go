package costbasis

import "github.com/etnz/costbasis/date"

// SSEClosures2025_2026 lists the Shanghai and Shenzhen exchange closures
// announced for 2025, and the expected ones for 2026. Weekend dates inside a
// holiday run are kept so the list matches the exchange notices.
//
// Use it as SettlementConfig.Holidays; the 2026 dates must be checked
// against the official notice once published.
var SSEClosures2025_2026 = parseDates(
	// 2025
	"2025-01-01",
	"2025-01-28", "2025-01-29", "2025-01-30", "2025-01-31",
	"2025-02-01", "2025-02-02", "2025-02-03", "2025-02-04",
	"2025-04-04", "2025-04-05", "2025-04-06",
	"2025-05-01", "2025-05-02", "2025-05-03", "2025-05-04", "2025-05-05",
	"2025-05-31", "2025-06-01", "2025-06-02",
	"2025-10-01", "2025-10-02", "2025-10-03", "2025-10-04",
	"2025-10-05", "2025-10-06", "2025-10-07",
	// 2026
	"2026-01-01", "2026-01-02", "2026-01-03",
	"2026-02-16", "2026-02-17", "2026-02-18", "2026-02-19",
	"2026-02-20", "2026-02-21", "2026-02-22",
	"2026-04-04", "2026-04-05", "2026-04-06",
	"2026-05-01", "2026-05-02", "2026-05-03", "2026-05-04", "2026-05-05",
	"2026-06-19", "2026-06-20", "2026-06-21",
	"2026-10-01", "2026-10-02", "2026-10-03", "2026-10-04",
	"2026-10-05", "2026-10-06", "2026-10-07", "2026-10-08",
)

func parseDates(days ...string) []date.Date {
	out := make([]date.Date, len(days))
	for i, d := range days {
		out[i] = date.MustParse(d)
	}
	return out
}
