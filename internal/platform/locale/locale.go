// Package locale picks one of the supported display languages for a
// configured tag and formats dates in it.
package locale

import (
	"strconv"
	"time"

	"golang.org/x/text/language"
)

var supported = []language.Tag{language.English, language.Russian}

var matcher = language.NewMatcher(supported)

// Match maps any BCP 47 tag ("ru-RU", "en_GB", "de") to a supported base
// language. Unknown tags resolve to English.
func Match(tag string) language.Tag {
	t, err := language.Parse(tag)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Code returns the two-letter code of a supported tag.
func Code(t language.Tag) string {
	base, _ := t.Base()
	return base.String()
}

var englishMonths = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Russian day-month titles use the genitive form ("5 января").
var russianMonths = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

func MonthName(t language.Tag, m time.Month) string {
	if Code(t) == "ru" {
		return russianMonths[m-1]
	}
	return englishMonths[m-1]
}

// DayMonth renders the "D MMMM" title: day without padding, full month name.
func DayMonth(t language.Tag, d time.Time) string {
	return strconv.Itoa(d.Day()) + " " + MonthName(t, d.Month())
}
