// Package schedule разбирает расписание, вставленное из внешнего
// планировщика, в нормализованные описания матчей.
//
// Парсер — однопроходный сканер в духе bufio.Scanner: Next/Match читают
// строки лениво, повторный проход по уже прочитанному входу невозможен.
// Категория и раунд/флайт переносятся между строками, пока их не
// перезапишет новая строка-заголовок. Битые строки молча пропускаются —
// одна плохая строка не должна ронять весь импорт.
package schedule

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParsedMatch — нормализованное описание одного матча из расписания.
type ParsedMatch struct {
	// SequenceNumber — порядковый номер принятой строки, начиная с 1.
	SequenceNumber int
	// Label — исходная метка матча ("Match 12", "Semi Final 1*1").
	// Может быть пустой; не является уникальным ключом.
	Label         string
	Category      string
	Round         string
	Team1         string
	Team2         string
	CourtNumber   *int
	ScheduledTime *time.Time
}

// ImportStats — счётчики по результату разбора. Ноль принятых строк на
// непустом входе — не ошибка, а повод показать эти счётчики пользователю.
type ImportStats struct {
	LinesTotal int `json:"lines_total"`
	Accepted   int `json:"accepted"`
	Skipped    int `json:"skipped"`
}

var (
	courtRe = regexp.MustCompile(`\bCourt\s*(\d+)\b`)
	timeRe  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	roundRe = regexp.MustCompile(`(?i)\b(Semi|Final|Third)\b`)
	labelRe = regexp.MustCompile(`^Match\s*\d`)
	// Код дивизиона: буквы, затем цифры ("MD50+ 5.0", "WS19+").
	divisionRe = regexp.MustCompile(`^[A-Za-z]+\d`)
	// Колонка счёта в исходнике: "--" или "11-9".
	scoreColRe = regexp.MustCompile(`^(--|\d+\s*[-:]\s*\d+)$`)
)

// Parser лениво выдаёт матчи из текста расписания.
type Parser struct {
	scanner  *bufio.Scanner
	baseDate time.Time

	category string
	round    string
	seq      int

	current ParsedMatch
	stats   ImportStats
}

// NewParser создаёт парсер поверх r. baseDate комбинируется со временем
// HH:MM из строк расписания; нулевая дата допустима — тогда время матча
// привязывается к нулевой дате, сохраняя относительный порядок.
func NewParser(r io.Reader, baseDate time.Time) *Parser {
	return &Parser{
		scanner:  bufio.NewScanner(r),
		baseDate: baseDate,
	}
}

// NewTextParser — удобный конструктор для уже имеющейся строки.
func NewTextParser(text string, baseDate time.Time) *Parser {
	return NewParser(strings.NewReader(text), baseDate)
}

// Next продвигает парсер к следующему принятому матчу.
// Возвращает false, когда вход исчерпан.
func (p *Parser) Next() bool {
	for p.scanner.Scan() {
		line := strings.TrimSpace(p.scanner.Text())
		if line == "" {
			continue
		}
		p.stats.LinesTotal++

		if isNoiseLine(line) {
			p.stats.Skipped++
			continue
		}

		// Строка матча обязана содержать и "Court <n>", и время HH:MM.
		// Всё остальное — контекст (дивизион, флайт, раунд).
		if courtRe.MatchString(line) && timeRe.MatchString(line) {
			if match, ok := p.parseMatchRow(line); ok {
				p.current = match
				p.stats.Accepted++
				return true
			}
			p.stats.Skipped++
			continue
		}

		p.parseContextRow(line)
		p.stats.Skipped++
	}
	return false
}

// Match возвращает матч, принятый последним вызовом Next.
func (p *Parser) Match() ParsedMatch {
	return p.current
}

// Stats возвращает счётчики разбора на текущий момент.
func (p *Parser) Stats() ImportStats {
	return p.stats
}

// ParseAll вычитывает парсер до конца. Для больших импортов предпочтительнее
// цикл Next/Match, но на практике расписание одного дня невелико.
func ParseAll(text string, baseDate time.Time) ([]ParsedMatch, ImportStats) {
	p := NewTextParser(text, baseDate)
	var matches []ParsedMatch
	for p.Next() {
		matches = append(matches, p.Match())
	}
	return matches, p.Stats()
}

func isNoiseLine(line string) bool {
	return strings.HasPrefix(line, "Search:") ||
		strings.HasPrefix(line, "Division") ||
		line == "Scores"
}

func (p *Parser) parseMatchRow(line string) (ParsedMatch, bool) {
	match := ParsedMatch{
		Category: p.category,
		Round:    p.round,
	}

	var teams []string
	var leftovers []string

	for i, token := range splitColumns(line) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if m := courtRe.FindStringSubmatch(token); m != nil && match.CourtNumber == nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				match.CourtNumber = &n
			}
			continue
		}
		if match.ScheduledTime == nil {
			if t, ok := p.parseTime(token); ok {
				match.ScheduledTime = t
				continue
			}
		}
		if scoreColRe.MatchString(token) {
			// Колонку счёта исходного планировщика игнорируем: счёт
			// появляется только через судью корта.
			continue
		}
		if labelRe.MatchString(token) {
			match.Label = token
			continue
		}
		if strings.Contains(token, "Flight") || roundRe.MatchString(token) {
			// Раундовые токены перекрывают перенесённый раунд и
			// одновременно служат меткой матча ("Semi Final 1*1").
			match.Round = token
			if i == 0 && match.Label == "" {
				match.Label = token
			}
			continue
		}
		if strings.Contains(token, "&") {
			teams = append(teams, token)
			continue
		}
		leftovers = append(leftovers, token)
	}

	// Одиночные разряды не содержат "&" — добираем имена из оставшихся
	// колонок в исходном порядке.
	for _, token := range leftovers {
		if len(teams) >= 2 {
			break
		}
		teams = append(teams, token)
	}

	if len(teams) < 2 {
		return ParsedMatch{}, false
	}
	match.Team1, match.Team2 = teams[0], teams[1]

	// TBD и BYE — заглушки несыгранных слотов, их не импортируем.
	if isPlaceholderTeam(match.Team1) || isPlaceholderTeam(match.Team2) {
		return ParsedMatch{}, false
	}

	p.seq++
	match.SequenceNumber = p.seq
	if match.Label == "" {
		match.Label = "Match " + strconv.Itoa(p.seq)
	}
	return match, true
}

func (p *Parser) parseContextRow(line string) {
	for _, token := range splitColumns(line) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if strings.Contains(token, "Flight") || roundRe.MatchString(token) {
			p.round = token
			continue
		}
		if divisionRe.MatchString(token) &&
			!strings.Contains(token, "&") &&
			!strings.Contains(token, "Match") {
			p.category = token
		}
	}
}

func (p *Parser) parseTime(token string) (*time.Time, bool) {
	m := timeRe.FindStringSubmatch(token)
	if m == nil || token != m[0] {
		// Время распознаём только как отдельную колонку, чтобы не
		// принять "1*10:15" внутри метки за время начала.
		return nil, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	// При нулевой baseDate время ложится на нулевую дату — относительный
	// порядок матчей внутри импорта при этом сохраняется.
	t := time.Date(p.baseDate.Year(), p.baseDate.Month(), p.baseDate.Day(), hour, minute, 0, 0, time.UTC)
	return &t, true
}

func isPlaceholderTeam(team string) bool {
	return strings.EqualFold(strings.TrimSpace(team), "TBD") ||
		strings.Contains(strings.ToUpper(team), "BYE")
}

// splitColumns режет строку по табуляциям; несколько подряд идущих
// табов считаются одним разделителем (так копирует браузер).
func splitColumns(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool { return r == '\t' })
}
