package account

// History caps. The active account keeps deep scrollback; background accounts
// only need enough for an instant first paint after a switch.
const (
	ActiveHistoryCap     = 2000
	BackgroundHistoryCap = 200
)

// TrimHistory caps the stored closed-trade list. History is ordered most
// recently closed first, so the excess to drop is the oldest tail.
func TrimHistory(trades []Trade, active bool) []Trade {
	limit := BackgroundHistoryCap
	if active {
		limit = ActiveHistoryCap
	}
	if len(trades) <= limit {
		return trades
	}
	return trades[:limit]
}

// HistoryChanged is a cheap inequality check used to suppress redundant
// history broadcasts: same length and same trade IDs at both ends counts as
// unchanged. Interior-only changes are deliberately not detected; a full diff
// on every 2s tick costs more than the occasional suppressed repaint saves.
func HistoryChanged(old, new []Trade) bool {
	if len(old) != len(new) {
		return true
	}
	if len(new) == 0 {
		return false
	}
	if old[0].ID != new[0].ID {
		return true
	}
	return old[len(old)-1].ID != new[len(new)-1].ID
}
