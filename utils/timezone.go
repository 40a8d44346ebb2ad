package utils

import (
	"time"
)

var (
	// GlobalLocation 全局配置的时区（仅用于日志展示，交易计数一律按 UTC）
	GlobalLocation *time.Location
)

func init() {
	// 默认 UTC：每日计数器的重置边界是 UTC 零点
	SetLocation("UTC")
}

// SetLocation 设置全局时区
func SetLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// 如果加载失败，保留原有时区或默认值
		if GlobalLocation == nil {
			GlobalLocation = time.UTC
		}
		return err
	}
	GlobalLocation = loc
	return nil
}

// ToConfiguredTimezone 将时间转换为配置的时区
func ToConfiguredTimezone(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(GlobalLocation)
}

// ToUTC 将时间转换为UTC时间
func ToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// NowUTC 获取当前UTC时间
func NowUTC() time.Time {
	return time.Now().UTC()
}

// NowConfiguredTimezone 获取当前配置时区的时间
func NowConfiguredTimezone() time.Time {
	return time.Now().In(GlobalLocation)
}

// NextUTCMidnight 计算下一个 UTC 零点
func NextUTCMidnight(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// MillisUntilUTCMidnight 计算距离下一个 UTC 零点的毫秒数
func MillisUntilUTCMidnight(now time.Time) int64 {
	return NextUTCMidnight(now).Sub(now.UTC()).Milliseconds()
}
