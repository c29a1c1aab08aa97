package market

import (
	"sync"
	"time"
)

var (
	nyOnce sync.Once
	nyLoc  *time.Location
)

// Location returns America/New_York, falling back to a fixed EST offset when the
// zone database is unavailable.
func Location() *time.Location {
	nyOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("EST", -5*60*60)
		}
		nyLoc = loc
	})
	return nyLoc
}

// Calendar answers whether the regular cash session is open.
type Calendar interface {
	IsOpen(now time.Time) bool
}

// Session is a weekday session window in a fixed location. Both bounds are inclusive.
type Session struct {
	Loc         *time.Location
	OpenMinute  int // minutes after midnight
	CloseMinute int
}

// RegularSession is 09:30 to 16:00 New York time, Monday to Friday.
func RegularSession() Session {
	return Session{Loc: Location(), OpenMinute: 9*60 + 30, CloseMinute: 16 * 60}
}

func (s Session) IsOpen(now time.Time) bool {
	loc := s.Loc
	if loc == nil {
		loc = Location()
	}
	local := now.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	if minute < s.OpenMinute {
		return false
	}
	if minute > s.CloseMinute {
		return false
	}
	// 16:00:30 is past the close even though the minute matches.
	if minute == s.CloseMinute && (local.Second() > 0 || local.Nanosecond() > 0) {
		return false
	}
	return true
}

// AlwaysOpen is a calendar for instruments traded around the clock.
type AlwaysOpen struct{}

func (AlwaysOpen) IsOpen(time.Time) bool { return true }
