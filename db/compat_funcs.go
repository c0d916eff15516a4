package db

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	mysqlDateLayout     = "2006-01-02"
	mysqlTimeLayout     = "15:04:05"
	mysqlDateTimeLayout = "2006-01-02 15:04:05"
)

type compatFunc struct {
	name string
	impl interface{}
	pure bool
}

var compatFuncs = []compatFunc{
	{"regexp", regexpMatch, true},
	{"now", func() string { return time.Now().Format(mysqlDateTimeLayout) }, false},
	{"sysdate", func() string { return time.Now().Format(mysqlDateTimeLayout) }, false},
	{"curdate", func() string { return time.Now().Format(mysqlDateLayout) }, false},
	{"curtime", func() string { return time.Now().Format(mysqlTimeLayout) }, false},
	{"utc_timestamp", func() string { return time.Now().UTC().Format(mysqlDateTimeLayout) }, false},
	{"unix_timestamp", unixTimestamp, false},
	{"from_unixtime", fromUnixtime, true},
	{"year", datePart(func(t time.Time) int { return t.Year() }), true},
	{"month", datePart(func(t time.Time) int { return int(t.Month()) }), true},
	{"day", datePart(func(t time.Time) int { return t.Day() }), true},
	{"dayofmonth", datePart(func(t time.Time) int { return t.Day() }), true},
	{"hour", datePart(func(t time.Time) int { return t.Hour() }), true},
	{"minute", datePart(func(t time.Time) int { return t.Minute() }), true},
	{"second", datePart(func(t time.Time) int { return t.Second() }), true},
	{"date_format", dateFormat, true},
	{"datediff", dateDiff, true},
	{"md5", digest(func(b []byte) []byte { h := md5.Sum(b); return h[:] }), true},
	{"sha1", digest(func(b []byte) []byte { h := sha1.Sum(b); return h[:] }), true},
	{"rand", randFloat, false},
	{"isnull", func(v interface{}) int { return boolInt(v == nil) }, true},
	{"if", ifFunc, true},
	{"concat_ws", concatWS, true},
	{"left", leftFunc, true},
	{"right", rightFunc, true},
	{"find_in_set", findInSet, true},
}

// RegisterCompatFuncs registers the MySQL functions SQLite lacks on conn.
// It is the ConnectHook of DriverName.
func RegisterCompatFuncs(conn *sqlite3.SQLiteConn) error {
	for _, f := range compatFuncs {
		if err := conn.RegisterFunc(f.name, f.impl, f.pure); err != nil {
			return fmt.Errorf("register function %s: %w", f.name, err)
		}
	}
	return nil
}

var regexpCache = xsync.NewMapOf[string, *regexp.Regexp]()

// regexpMatch backs "text REGEXP pattern". Matching is case-insensitive
// like MySQL on non-binary strings.
func regexpMatch(patternArg, textArg interface{}) (interface{}, error) {
	if patternArg == nil || textArg == nil {
		return nil, nil
	}
	pattern, text := toText(patternArg), toText(textArg)
	re, ok := regexpCache.Load(pattern)
	if !ok {
		var err error
		re, err = regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false, fmt.Errorf("invalid REGEXP pattern %q: %w", pattern, err)
		}
		regexpCache.Store(pattern, re)
	}
	return boolInt(re.MatchString(text)), nil
}

// parseMySQLTime parses a DATE/DATETIME value. ok is false for NULL, the
// empty string and MySQL zero dates.
func parseMySQLTime(v interface{}) (time.Time, bool, error) {
	var s string
	switch val := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case string:
		s = val
	case []byte:
		s = string(val)
	case int64:
		return time.Unix(val, 0), true, nil
	default:
		return time.Time{}, false, fmt.Errorf("invalid date value of type %T", v)
	}

	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return time.Time{}, false, nil
	}
	for _, layout := range []string{mysqlDateTimeLayout, mysqlDateLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid date value %q", s)
}

func datePart(part func(time.Time) int) func(interface{}) (interface{}, error) {
	return func(v interface{}) (interface{}, error) {
		t, ok, err := parseMySQLTime(v)
		if err != nil || !ok {
			return nil, err
		}
		return part(t), nil
	}
}

func unixTimestamp(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return time.Now().Unix(), nil
	}
	t, ok, err := parseMySQLTime(args[0])
	if err != nil || !ok {
		return nil, err
	}
	return t.Unix(), nil
}

func fromUnixtime(v interface{}) (interface{}, error) {
	var ts int64
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int64:
		ts = val
	case float64:
		ts = int64(val)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid unix timestamp %q: %w", val, err)
		}
		ts = n
	default:
		return nil, fmt.Errorf("invalid unix timestamp of type %T", v)
	}
	return time.Unix(ts, 0).Format(mysqlDateTimeLayout), nil
}

func dateDiff(a, b interface{}) (interface{}, error) {
	ta, okA, err := parseMySQLTime(a)
	if err != nil {
		return nil, err
	}
	tb, okB, err := parseMySQLTime(b)
	if err != nil {
		return nil, err
	}
	if !okA || !okB {
		return nil, nil
	}
	da := time.Date(ta.Year(), ta.Month(), ta.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(tb.Year(), tb.Month(), tb.Day(), 0, 0, 0, 0, time.UTC)
	return int64(da.Sub(db).Hours() / 24), nil
}

// dateFormat implements DATE_FORMAT for the common specifiers. Unknown
// specifiers are copied without the percent sign, as MySQL does.
func dateFormat(v, formatArg interface{}) (interface{}, error) {
	t, ok, err := parseMySQLTime(v)
	if err != nil || !ok || formatArg == nil {
		return nil, err
	}
	format := toText(formatArg)

	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 == len(format) {
			sb.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case 'Y':
			fmt.Fprintf(&sb, "%04d", t.Year())
		case 'y':
			fmt.Fprintf(&sb, "%02d", t.Year()%100)
		case 'm':
			fmt.Fprintf(&sb, "%02d", int(t.Month()))
		case 'c':
			sb.WriteString(strconv.Itoa(int(t.Month())))
		case 'M':
			sb.WriteString(t.Month().String())
		case 'b':
			sb.WriteString(t.Month().String()[:3])
		case 'd':
			fmt.Fprintf(&sb, "%02d", t.Day())
		case 'e':
			sb.WriteString(strconv.Itoa(t.Day()))
		case 'H':
			fmt.Fprintf(&sb, "%02d", t.Hour())
		case 'k':
			sb.WriteString(strconv.Itoa(t.Hour()))
		case 'h', 'I':
			fmt.Fprintf(&sb, "%02d", (t.Hour()+11)%12+1)
		case 'l':
			sb.WriteString(strconv.Itoa((t.Hour()+11)%12 + 1))
		case 'i':
			fmt.Fprintf(&sb, "%02d", t.Minute())
		case 's', 'S':
			fmt.Fprintf(&sb, "%02d", t.Second())
		case 'p':
			if t.Hour() < 12 {
				sb.WriteString("AM")
			} else {
				sb.WriteString("PM")
			}
		case 'T':
			sb.WriteString(t.Format(mysqlTimeLayout))
		case 'W':
			sb.WriteString(t.Weekday().String())
		case 'a':
			sb.WriteString(t.Weekday().String()[:3])
		case 'w':
			sb.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'j':
			fmt.Fprintf(&sb, "%03d", t.YearDay())
		default:
			sb.WriteByte(format[i])
		}
	}
	return sb.String(), nil
}

// randFloat implements RAND() and the deterministic RAND(seed).
func randFloat(args ...interface{}) float64 {
	if len(args) > 0 {
		if seed, ok := args[0].(int64); ok {
			return rand.New(rand.NewSource(seed)).Float64()
		}
	}
	return rand.Float64()
}

func digest(sum func([]byte) []byte) func(interface{}) interface{} {
	return func(v interface{}) interface{} {
		if v == nil {
			return nil
		}
		return hex.EncodeToString(sum([]byte(toText(v))))
	}
}

func ifFunc(cond, then, otherwise interface{}) interface{} {
	if truthy(cond) {
		return then
	}
	return otherwise
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return err == nil && f != 0
	case []byte:
		return truthy(string(val))
	case bool:
		return val
	}
	return false
}

func concatWS(args ...interface{}) interface{} {
	if len(args) == 0 || args[0] == nil {
		return nil
	}
	parts := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if a != nil {
			parts = append(parts, toText(a))
		}
	}
	return strings.Join(parts, toText(args[0]))
}

func leftFunc(s interface{}, n int64) interface{} {
	if s == nil {
		return nil
	}
	r := []rune(toText(s))
	if n < 0 {
		n = 0
	}
	if int(n) < len(r) {
		r = r[:n]
	}
	return string(r)
}

func rightFunc(s interface{}, n int64) interface{} {
	if s == nil {
		return nil
	}
	r := []rune(toText(s))
	if n < 0 {
		n = 0
	}
	if int(n) < len(r) {
		r = r[len(r)-int(n):]
	}
	return string(r)
}

// findInSet returns the 1-based position of needle in a comma separated
// list, 0 when absent.
func findInSet(needle, list interface{}) interface{} {
	if needle == nil || list == nil {
		return nil
	}
	n := toText(needle)
	for i, item := range strings.Split(toText(list), ",") {
		if item == n {
			return int64(i + 1)
		}
	}
	return int64(0)
}

func toText(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
