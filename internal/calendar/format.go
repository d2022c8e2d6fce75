package calendar

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

type MonthStyle string

const (
	MonthShort MonthStyle = "short"
	MonthLong  MonthStyle = "long"
)

// ParseMonthStyle defaults to MonthLong for anything but "short".
func ParseMonthStyle(s string) MonthStyle {
	if strings.EqualFold(strings.TrimSpace(s), string(MonthShort)) {
		return MonthShort
	}
	return MonthLong
}

type localeFormat struct {
	long    [12]string
	short   [12]string
	pattern func(day int, month string, year int) string
}

var supportedLocales = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Portuguese,
	language.Italian,
	language.Dutch,
	language.Japanese,
}

var localeMatcher = language.NewMatcher(supportedLocales)

func dayMonthYear(day int, month string, year int) string {
	return fmt.Sprintf("%d %s %d", day, month, year)
}

var localeFormats = map[string]localeFormat{
	"en": {
		long:  [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
		short: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		pattern: func(day int, month string, year int) string {
			return fmt.Sprintf("%s %d, %d", month, day, year)
		},
	},
	"es": {
		long:  [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"},
		short: [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
		pattern: func(day int, month string, year int) string {
			return fmt.Sprintf("%d de %s de %d", day, month, year)
		},
	},
	"fr": {
		long:    [12]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
		short:   [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
		pattern: dayMonthYear,
	},
	"de": {
		long:  [12]string{"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli", "August", "September", "Oktober", "November", "Dezember"},
		short: [12]string{"Jan.", "Feb.", "März", "Apr.", "Mai", "Juni", "Juli", "Aug.", "Sept.", "Okt.", "Nov.", "Dez."},
		pattern: func(day int, month string, year int) string {
			return fmt.Sprintf("%d. %s %d", day, month, year)
		},
	},
	"pt": {
		long:  [12]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"},
		short: [12]string{"jan.", "fev.", "mar.", "abr.", "mai.", "jun.", "jul.", "ago.", "set.", "out.", "nov.", "dez."},
		pattern: func(day int, month string, year int) string {
			return fmt.Sprintf("%d de %s de %d", day, month, year)
		},
	},
	"it": {
		long:    [12]string{"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno", "luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre"},
		short:   [12]string{"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"},
		pattern: dayMonthYear,
	},
	"nl": {
		long:    [12]string{"januari", "februari", "maart", "april", "mei", "juni", "juli", "augustus", "september", "oktober", "november", "december"},
		short:   [12]string{"jan", "feb", "mrt", "apr", "mei", "jun", "jul", "aug", "sep", "okt", "nov", "dec"},
		pattern: dayMonthYear,
	},
	"ja": {
		pattern: func(day int, month string, year int) string {
			return fmt.Sprintf("%d年%s%d日", year, month, day)
		},
	},
}

// FormatForDisplay renders d for a BCP 47 locale. The date is anchored at
// UTC midnight so the viewer's zone never shifts the day shown.
func FormatForDisplay(d Date, locale string, style MonthStyle) string {
	t := d.Time()
	base := matchLocale(locale)
	f := localeFormats[base]

	month := ""
	switch {
	case base == "ja":
		month = fmt.Sprintf("%d月", int(t.Month()))
	case style == MonthShort:
		month = f.short[t.Month()-1]
	default:
		month = f.long[t.Month()-1]
	}
	return f.pattern(t.Day(), month, t.Year())
}

func matchLocale(locale string) string {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if err != nil {
		return "en"
	}
	_, index, confidence := localeMatcher.Match(tag)
	if confidence == language.No {
		return "en"
	}
	base, _ := supportedLocales[index].Base()
	if _, ok := localeFormats[base.String()]; !ok {
		return "en"
	}
	return base.String()
}
