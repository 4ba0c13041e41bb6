package protocol

import "time"

// TimeAnnouncementAt converts t, in its own location, to a TimeAnnouncement.
func TimeAnnouncementAt(t time.Time) TimeAnnouncement {
	dow := uint8(t.Weekday())
	if dow == 0 {
		dow = 7
	}
	return TimeAnnouncement{
		Year:      uint16(t.Year()),
		Month:     uint8(t.Month()),
		Day:       uint8(t.Day()),
		Hour:      uint8(t.Hour()),
		Minute:    uint8(t.Minute()),
		Second:    uint8(t.Second()),
		DayOfWeek: dow,
	}
}

// Time returns the announced instant in loc, or the zero time if the fields
// do not form a valid date.
func (m TimeAnnouncement) Time(loc *time.Location) time.Time {
	if m.Month < 1 || m.Month > 12 || m.Day < 1 || m.Day > 31 {
		return time.Time{}
	}
	return time.Date(int(m.Year), time.Month(m.Month), int(m.Day), int(m.Hour), int(m.Minute), int(m.Second), 0, loc)
}
