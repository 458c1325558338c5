// Package dateutil は日時の表示用ヘルパーを提供する。
//
// 値が存在しない場合は"Unknown"、解釈できない場合は"Invalid date"を返し、
// エラーを呼び出し元へ伝播しない。
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// Unknown は値が存在しない場合の表示。
	Unknown = "Unknown"
	// Invalid は日時として解釈できない場合の表示。
	Invalid = "Invalid date"
	// DefaultLayout はLocalDateの既定の書式。
	DefaultLayout = "1/2/2006"
)

var (
	// ErrAbsent は値が存在しないことを表す。
	ErrAbsent = errors.New("dateutil: value is absent")
	// ErrInvalid は値を日時として解釈できないことを表す。
	ErrInvalid = errors.New("dateutil: invalid date")
)

// zonedLayouts はタイムゾーン付きの文字列の書式。
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// localLayouts はタイムゾーンなしの文字列の書式。Formatterの地域で解釈する。
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// dateOnlyLayout は日付のみの書式。UTCとして解釈する。
const dateOnlyLayout = time.DateOnly

// Formatter は現在時刻と地域を指定して日時を整形する。
type Formatter struct {
	// now は現在時刻を返す。
	now func() time.Time
	// layout はLocalDateの書式。
	layout string
	// loc は表示とタイムゾーンなしの文字列の解釈に使う地域。
	loc *time.Location
}

// Option はFormatterの設定を変更する。
type Option func(*Formatter)

// WithNow は現在時刻の取得方法を差し替える。
func WithNow(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// WithLayout はLocalDateの書式を設定する。空文字列は無視される。
func WithLayout(layout string) Option {
	return func(f *Formatter) {
		if layout != "" {
			f.layout = layout
		}
	}
}

// WithLocation は表示に使う地域を設定する。
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// NewFormatter は新しいFormatterを生成する。
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		now:    time.Now,
		layout: DefaultLayout,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Parse は値を日時に変換する。
// nil、空文字列、ゼロ値はErrAbsent、解釈できない値はErrInvalidを返す。
func (f *Formatter) Parse(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, ErrAbsent
	case time.Time:
		if x.IsZero() {
			return time.Time{}, ErrAbsent
		}
		return x, nil
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, ErrAbsent
		}
		return *x, nil
	case string:
		return f.parseString(x)
	case *string:
		if x == nil {
			return time.Time{}, ErrAbsent
		}
		return f.parseString(*x)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalid, v)
	}
}

// parseString は既知の書式を順に試して文字列を日時に変換する。
func (f *Formatter) parseString(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrAbsent
	}
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, raw)
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, f.loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, s)
}

// RelativeTime は現在時刻からの相対時間（例: "3 hours ago"）を返す。
func (f *Formatter) RelativeTime(v any) string {
	t, err := f.Parse(v)
	if err != nil {
		return sentinel(err)
	}
	return humanize.RelTime(t, f.now(), "ago", "from now")
}

// LocalDate は地域の日付書式で整形した文字列を返す。
func (f *Formatter) LocalDate(v any) string {
	t, err := f.Parse(v)
	if err != nil {
		return sentinel(err)
	}
	return t.In(f.loc).Format(f.layout)
}

// IsValidDate は値が日時として解釈できるかどうかを返す。値が存在しない場合はfalse。
func (f *Formatter) IsValidDate(v any) bool {
	_, err := f.Parse(v)
	return err == nil
}

// sentinel はParseのエラーを表示用の文字列に変換する。
func sentinel(err error) string {
	if errors.Is(err, ErrAbsent) {
		return Unknown
	}
	return Invalid
}

var defaultFormatter = NewFormatter()

// RelativeTime は既定のFormatterで相対時間を返す。
func RelativeTime(v any) string {
	return defaultFormatter.RelativeTime(v)
}

// LocalDate は既定のFormatterで日付を整形する。
func LocalDate(v any) string {
	return defaultFormatter.LocalDate(v)
}

// IsValidDate は既定のFormatterで値が日時として解釈できるかどうかを返す。
func IsValidDate(v any) bool {
	return defaultFormatter.IsValidDate(v)
}
