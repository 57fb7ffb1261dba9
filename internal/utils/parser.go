package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var sizeRe = regexp.MustCompile(`^(\d+)(B|K|KB|M|MB|G|GB)?$`)

// ParseSize converts strings like "16M", "512K", "1G" or "1048576" into bytes.
// Default unit is bytes if no suffix is provided.
func ParseSize(sizeStr string) (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(sizeStr))

	matches := sizeRe.FindStringSubmatch(s)
	if len(matches) < 2 {
		return 0, fmt.Errorf("invalid size format: %s (expected '16M', '512K', etc.)", sizeStr)
	}

	val, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", matches[1])
	}

	switch matches[2] {
	case "K", "KB":
		return val << 10, nil
	case "M", "MB":
		return val << 20, nil
	case "G", "GB":
		return val << 30, nil
	default:
		return val, nil
	}
}

// ParseDuration parses a duration string supporting multiple formats:
//   - Go duration: "2h", "30m", "1h30m", "90s"
//   - HH:MM:SS format: "02:00:00", "2:30:00", "00:30:00"
//   - H:MM format: "2:30" (interpreted as hours:minutes)
//
// "0" and "" both mean no duration.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		nums := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return 0, fmt.Errorf("invalid time component %q in %s", p, s)
			}
			nums[i] = n
		}
		switch len(nums) {
		case 2:
			return time.Duration(nums[0])*time.Hour + time.Duration(nums[1])*time.Minute, nil
		case 3:
			return time.Duration(nums[0])*time.Hour +
				time.Duration(nums[1])*time.Minute +
				time.Duration(nums[2])*time.Second, nil
		default:
			return 0, fmt.Errorf("invalid time format: %s (use HH:MM:SS or HH:MM)", s)
		}
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s (use '90s', '5m', '1h30m', or '00:05:00')", s)
	}
	return dur, nil
}
