package efi

import (
	"time"
	"unsafe"
)

// UnspecifiedTimezone marks an EFI_TIME whose TimeZone field carries no
// information; such times are interpreted as UTC.
const UnspecifiedTimezone = 0x07ff

// Time mirrors the EFI_TIME structure.
type Time struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	_          uint8
	Nanosecond uint32

	// TimeZone is the offset in minutes from UTC: local time = UTC - TimeZone.
	TimeZone int16
	Daylight uint8
	_        uint8
}

// ReadTime copies the EFI_TIME stored at addr.
func ReadTime(addr uintptr) Time {
	return *(*Time)(unsafe.Pointer(addr))
}

// WriteTime stores t at addr.
func WriteTime(addr uintptr, t Time) {
	*(*Time)(unsafe.Pointer(addr)) = t
}

// GoTime converts t to a time.Time.
func (t Time) GoTime() time.Time {
	loc := time.UTC
	if t.TimeZone != UnspecifiedTimezone && t.TimeZone != 0 {
		loc = time.FixedZone("", -int(t.TimeZone)*60)
	}

	return time.Date(
		int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond),
		loc,
	)
}

// TimeOf converts tm to an EFI_TIME in UTC.
func TimeOf(tm time.Time) Time {
	tm = tm.UTC()
	return Time{
		Year:       uint16(tm.Year()),
		Month:      uint8(tm.Month()),
		Day:        uint8(tm.Day()),
		Hour:       uint8(tm.Hour()),
		Minute:     uint8(tm.Minute()),
		Second:     uint8(tm.Second()),
		Nanosecond: uint32(tm.Nanosecond()),
		TimeZone:   UnspecifiedTimezone,
	}
}
