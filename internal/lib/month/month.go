// Package month содержит арифметику расчётных циклов. Дата продления
// сдвигается на целые месяцы с сохранением дня месяца; если такого дня
// в целевом месяце нет (например, 31-е в апреле), берётся последний
// день целевого месяца. time.AddDate для этого не подходит: он
// нормализует 31 января + месяц в 2-3 марта.
package month

import "time"

// AddClamped сдвигает дату t на months месяцев вперёд, сохраняя день
// месяца и время суток. День, отсутствующий в целевом месяце,
// заменяется последним днём этого месяца.
func AddClamped(t time.Time, months int) time.Time {
	year, m, day := t.Date()
	hour, min, sec := t.Clock()

	firstOfTarget := time.Date(year, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}

	ty, tm, _ := firstOfTarget.Date()
	return time.Date(ty, tm, day, hour, min, sec, t.Nanosecond(), t.Location())
}
