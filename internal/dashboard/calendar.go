package dashboard

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"fitlog/internal/database"
)

// 日期参数校验失败时返回的错误，处理器将其映射为 400。
var (
	ErrMissingDates  = errors.New("startDate and endDate are required")
	ErrMalformedDate = errors.New("dates must use the YYYY-MM-DD form")
	ErrInvalidRange  = errors.New("startDate must not be after endDate")
)

// IsValidationError reports whether err is one of the date parameter errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingDates) ||
		errors.Is(err, ErrMalformedDate) ||
		errors.Is(err, ErrInvalidRange)
}

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseDay 将 YYYY-MM-DD 解析为本地日历日（零点，本地时区）。
func ParseDay(s string) (time.Time, error) {
	if !dayPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	t, err := time.ParseInLocation(database.DayFormat, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return t, nil
}

// DateRange 枚举闭区间 [startDate, endDate] 内的全部日历日。
// 必须用本地日推进（AddDate），用 UTC 时刻加 24h 会在夏令时边界跳日或重日。
func DateRange(startDate, endDate string) ([]string, error) {
	if startDate == "" || endDate == "" {
		return nil, ErrMissingDates
	}

	start, err := ParseDay(startDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseDay(endDate)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	var dates []string
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		dates = append(dates, cur.Format(database.DayFormat))
	}
	return dates, nil
}

// LocalDay 将时间戳归一化为本地日历日字符串，
// 与训练日的日期比较前必须先做这一步。
func LocalDay(t time.Time) string {
	return t.In(time.Local).Format(database.DayFormat)
}
