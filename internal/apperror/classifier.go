// classifier.go — упорядоченный набор правил, превращающий «сырые» ошибки
// в типизированные ошибки таксономии.
//
// Правило = (предикат, исход). Правила проверяются строго в порядке
// объявления, срабатывает первое совпавшее. Если не совпало ни одно —
// возвращается ошибка по умолчанию (fallback) с тем же объединённым контекстом.
package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// classifiedErrors — количество ошибок, прошедших через классификатор.
var classifiedErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "realm_builder_classified_errors_total",
		Help: "Количество ошибок, прошедших через классификатор",
	},
	[]string{"kind", "matched"},
)

// --- Предикаты ---

// Predicate проверяет, подходит ли ошибка под правило.
type Predicate func(err error) bool

// MessageIncludesAll — сообщение содержит все части (без учёта регистра).
func MessageIncludesAll(parts ...string) Predicate {
	lowered := make([]string, len(parts))
	for i, p := range parts {
		lowered[i] = strings.ToLower(p)
	}
	return func(err error) bool {
		msg := strings.ToLower(err.Error())
		for _, p := range lowered {
			if !strings.Contains(msg, p) {
				return false
			}
		}
		return true
	}
}

// MessageEquals — сообщение совпадает с message буква в букву.
func MessageEquals(message string) Predicate {
	return func(err error) bool {
		return err.Error() == message
	}
}

// MessageMatches — сообщение соответствует регулярному выражению.
func MessageMatches(re *regexp.Regexp) Predicate {
	return func(err error) bool {
		return re.MatchString(err.Error())
	}
}

// IsType — в цепочке ошибки есть значение типа T (errors.As).
func IsType[T error]() Predicate {
	return func(err error) bool {
		var target T
		return errors.As(err, &target)
	}
}

// --- Исходы ---

type outcomeKind int

const (
	outcomePass outcomeKind = iota
	outcomeRaise
	outcomeRaiseCode
)

// Outcome — действие при срабатывании правила.
type Outcome struct {
	kind     outcomeKind
	template *Error
	code     string
}

// Pass — вернуть исходную ошибку без изменений.
func Pass() Outcome { return Outcome{kind: outcomePass} }

// Raise — вернуть копию template с объединённым контекстом.
func Raise(template *Error) Outcome { return Outcome{kind: outcomeRaise, template: template} }

// RaiseCode — вернуть «голый» строковый код (устаревший путь).
func RaiseCode(code string) Outcome { return Outcome{kind: outcomeRaiseCode, code: code} }

// Rule — правило классификатора.
type Rule struct {
	Match   Predicate
	Outcome Outcome
}

// When собирает правило из предиката и исхода.
func When(match Predicate, outcome Outcome) Rule {
	return Rule{Match: match, Outcome: outcome}
}

// --- Политика логирования ---

// LogPolicy определяет, какие ошибки классификатор пишет в лог.
type LogPolicy string

const (
	LogNever       LogPolicy = "never"
	LogKnown       LogPolicy = "known"
	LogAll         LogPolicy = "all"
	LogUnknownOnly LogPolicy = "unknown-only"
)

// ParseLogPolicy разбирает строковое значение политики.
func ParseLogPolicy(s string) (LogPolicy, error) {
	switch p := LogPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case LogNever, LogKnown, LogAll, LogUnknownOnly:
		return p, nil
	default:
		return "", fmt.Errorf("недопустимая политика %q, допустимые: never, known, all, unknown-only", s)
	}
}

func (p LogPolicy) shouldLog(matched bool) bool {
	switch p {
	case LogAll:
		return true
	case LogKnown:
		return matched
	case LogUnknownOnly:
		return !matched
	default:
		return false
	}
}

// --- Классификатор ---

// Classifier — изменяемый упорядоченный список правил.
// Безопасен для конкурентного использования.
type Classifier struct {
	mu       sync.RWMutex
	rules    []Rule
	fallback *Error
	policy   LogPolicy
	logger   *slog.Logger
}

// Option настраивает Classifier.
type Option func(*Classifier)

// WithRules задаёт начальный список правил.
func WithRules(rules ...Rule) Option {
	return func(c *Classifier) { c.rules = append(c.rules, rules...) }
}

// WithLogPolicy задаёт политику логирования.
func WithLogPolicy(p LogPolicy) Option {
	return func(c *Classifier) { c.policy = p }
}

// WithLogger задаёт логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger.With(slog.String("component", "error_classifier"))
	}
}

// NewClassifier создаёт классификатор с ошибкой по умолчанию fallback.
func NewClassifier(fallback *Error, opts ...Option) *Classifier {
	c := &Classifier{
		fallback: fallback,
		policy:   LogUnknownOnly,
		logger:   slog.Default().With(slog.String("component", "error_classifier")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Append добавляет правила в конец списка.
func (c *Classifier) Append(rules ...Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rules...)
}

// Prepend добавляет правила в начало списка (они получают наивысший приоритет).
func (c *Classifier) Prepend(rules ...Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(append(make([]Rule, 0, len(rules)+len(c.rules)), rules...), c.rules...)
}

// Replace заменяет весь список правил.
func (c *Classifier) Replace(rules ...Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append([]Rule(nil), rules...)
}

// Len возвращает количество правил.
func (c *Classifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

// Transform классифицирует err. ctx — контекст места вызова.
// nil на входе — nil на выходе.
func (c *Classifier) Transform(err error, ctx Context) error {
	if err == nil {
		return nil
	}

	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()

	for _, rule := range rules {
		if !rule.Match(err) {
			continue
		}
		switch rule.Outcome.kind {
		case outcomePass:
			c.record(err, "pass", true)
			return err
		case outcomeRaiseCode:
			c.record(err, "code", true)
			return CodeError(rule.Outcome.code)
		default:
			typed := c.merge(rule.Outcome.template, ctx, err)
			c.record(typed, string(typed.Kind), true)
			return typed
		}
	}

	typed := c.merge(c.fallback, ctx, err)
	c.record(typed, string(typed.Kind), false)
	return typed
}

// merge клонирует template: контекст шаблона, затем контекст вызова,
// затем ссылка на исходную ошибку. Клон помечается классификатором c.
func (c *Classifier) merge(template *Error, ctx Context, original error) *Error {
	out := template.With(ctx)
	out.Context[ContextOriginalError] = original
	out.origin = c
	return out
}

// Produced сообщает, выпущена ли err этим классификатором.
func (c *Classifier) Produced(err error) bool {
	appErr, ok := err.(*Error)
	return ok && appErr.origin == c
}

func (c *Classifier) record(err error, kind string, matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	classifiedErrors.WithLabelValues(kind, label).Inc()

	if !c.policy.shouldLog(matched) {
		return
	}

	attrs := []any{
		slog.String("kind", kind),
		slog.Bool("matched", matched),
		slog.String("error", err.Error()),
		slog.String("stack", callerStack()),
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		if orig := appErr.Unwrap(); orig != nil {
			attrs = append(attrs, slog.String("original_error", orig.Error()))
		}
	}
	if matched {
		c.logger.Warn("Ошибка классифицирована", attrs...)
	} else {
		c.logger.Error("Ошибка не распознана классификатором", attrs...)
	}
}

// callerStack возвращает стек вызова без кадров runtime, testing и самого пакета.
func callerStack() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		if !skipFrame(frame.Function) {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}

func skipFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.HasPrefix(fn, "testing.") ||
		strings.Contains(fn, "/internal/apperror.")
}
